package scene

import (
	"sort"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/ingwaz/featureflag"
	"github.com/aukilabs/ingwaz/octree"
	"github.com/google/uuid"
)

const (
	DefaultTidyInterval  = 60
	DefaultTidyThreshold = 256
)

// Options configures a scene.
type Options struct {
	// The initial size of the octree root cell. It grows when objects move
	// out of it.
	RootSize float64

	// The size of the finest octree cells.
	LeafSize float64

	// The number of syncs between two tidy passes. Defaults to
	// DefaultTidyInterval.
	TidyInterval int

	// The number of vacated nodes that triggers a tidy pass before the
	// interval elapses. Defaults to DefaultTidyThreshold.
	TidyThreshold int

	FeatureFlags featureflag.FeatureFlag
}

// FrameReport describes what a sync did to the spatial index.
type FrameReport struct {
	SceneUUID   string        `json:"scene_uuid"`
	Frame       uint64        `json:"frame"`
	Changed     int           `json:"changed"`
	Placed      int           `json:"placed"`
	Grown       bool          `json:"grown"`
	RootSize    float64       `json:"root_size"`
	Tidied      bool          `json:"tidied"`
	FreedNodes  int           `json:"freed_nodes"`
	ObjectCount int           `json:"object_count"`
	NodeCount   int           `json:"node_count"`
	Duration    time.Duration `json:"duration"`
}

// Scene owns a hierarchy of objects and keeps them indexed in an octree.
//
// A scene is not safe for concurrent use. Mutations are collected between
// frames and applied to the octree once per frame by Sync.
type Scene struct {
	UUID string

	options   Options
	tree      *octree.Octree
	ids       IDGenerator
	objects   map[uint32]*Object
	changed   map[uint32]*Object
	frame     uint64
	sinceTidy int
}

// New creates an empty scene.
func New(o Options) (*Scene, error) {
	if o.TidyInterval < 0 || o.TidyThreshold < 0 {
		return nil, errors.New("tidy interval and threshold must not be negative").
			WithType(octree.ErrTypeInvalidConfig).
			WithTag("tidy_interval", o.TidyInterval).
			WithTag("tidy_threshold", o.TidyThreshold)
	}
	if o.TidyInterval == 0 {
		o.TidyInterval = DefaultTidyInterval
	}
	if o.TidyThreshold == 0 {
		o.TidyThreshold = DefaultTidyThreshold
	}

	tree, err := octree.New(o.RootSize, o.LeafSize)
	if err != nil {
		return nil, errors.New("creating scene octree failed").
			WithType(errors.Type(err)).
			Wrap(err)
	}

	return &Scene{
		UUID:    uuid.NewString(),
		options: o,
		tree:    tree,
		objects: make(map[uint32]*Object),
		changed: make(map[uint32]*Object),
	}, nil
}

// Tree returns the octree indexing the scene. It must only be read between
// syncs.
func (s *Scene) Tree() *octree.Octree {
	return s.tree
}

func (s *Scene) Frame() uint64 {
	return s.frame
}

func (s *Scene) ObjectCount() int {
	return len(s.objects)
}

// Object returns the attached object with the given id.
func (s *Scene) Object(id uint32) (*Object, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

// Objects returns the attached objects ordered by id.
func (s *Scene) Objects() []*Object {
	objects := make([]*Object, 0, len(s.objects))
	for _, obj := range s.objects {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].id < objects[j].id
	})
	return objects
}

// Attach adds obj and its descendants to the scene, under parent when it is
// not nil. The objects are placed in the octree right away.
func (s *Scene) Attach(obj, parent *Object) error {
	if obj.scene != nil {
		return errors.New("object is already attached to a scene").
			WithType(ErrTypeObjectAttached).
			WithTag("name", obj.Name).
			WithTag("id", obj.id)
	}
	if obj.parent != nil {
		return errors.New("object is a child of another object").
			WithType(ErrTypeObjectAttached).
			WithTag("name", obj.Name).
			WithTag("parent", obj.parent.Name)
	}
	if parent != nil && parent.scene != s {
		return errors.New("parent is not attached to the scene").
			WithType(ErrTypeObjectNotAttached).
			WithTag("name", obj.Name).
			WithTag("parent", parent.Name)
	}

	if parent != nil {
		parent.addChild(obj)
	}

	count := 0
	obj.Walk(func(o *Object) {
		o.id = s.ids.New()
		o.scene = s
		o.worldDirty = true
		s.objects[o.id] = o
		count++
	})

	s.tree.PlaceObject(obj)
	instrumentObjectsAttached(count)

	logs.WithTag("scene", s.UUID).
		WithTag("name", obj.Name).
		WithTag("id", obj.id).
		WithTag("objects", count).
		Debug("object attached")
	return nil
}

// Detach removes obj and its descendants from the scene and from the octree.
// The ids of the removed objects are released.
func (s *Scene) Detach(obj *Object) error {
	if obj.scene != s {
		return errors.New("object is not attached to the scene").
			WithType(ErrTypeObjectNotAttached).
			WithTag("name", obj.Name)
	}

	s.tree.RemoveObject(obj)
	if obj.parent != nil {
		obj.parent.removeChild(obj)
	}

	count := 0
	obj.Walk(func(o *Object) {
		delete(s.objects, o.id)
		delete(s.changed, o.id)
		s.ids.Release(o.id)

		o.id = 0
		o.scene = nil
		o.worldDirty = true
		count++
	})

	instrumentObjectsDetached(count)
	logs.WithTag("scene", s.UUID).
		WithTag("name", obj.Name).
		WithTag("objects", count).
		Debug("object detached")
	return nil
}

func (s *Scene) markChanged(obj *Object) {
	s.changed[obj.id] = obj
}

// Sync applies the changes made since the previous sync to the octree. Each
// changed object is placed once, along with its descendants, no matter how
// many times it was modified. The octree then grows when the scene escaped
// its root, and empty nodes are freed on the configured cadence.
func (s *Scene) Sync() FrameReport {
	start := time.Now()
	s.frame++

	report := FrameReport{
		SceneUUID: s.UUID,
		Frame:     s.frame,
		Changed:   len(s.changed),
	}

	for _, obj := range s.changedRoots() {
		s.tree.PlaceObject(obj)
		report.Placed++
	}
	clear(s.changed)

	s.options.FeatureFlags.IfNotSet(featureflag.FlagDisableGrowth, func() {
		grown, err := s.tree.Grow()
		if err != nil {
			logs.Warn(errors.New("growing scene octree failed").
				WithTag("scene", s.UUID).
				Wrap(err))
			return
		}
		report.Grown = grown
	})
	if report.Grown {
		s.sinceTidy = 0
	}

	s.sinceTidy++
	s.options.FeatureFlags.IfNotSet(featureflag.FlagDisableTidy, func() {
		if s.sinceTidy < s.options.TidyInterval && s.tree.Vacated() < s.options.TidyThreshold {
			return
		}

		report.FreedNodes = s.tree.Tidy()
		report.Tidied = true
		s.sinceTidy = 0
	})

	report.RootSize = s.tree.RootSize()
	report.ObjectCount = s.tree.ObjectCount()
	report.NodeCount = s.tree.NodeCount()
	report.Duration = time.Since(start)

	if report.Tidied && report.FreedNodes > 0 {
		logs.WithTag("scene", s.UUID).
			WithTag("frame", s.frame).
			WithTag("freed_nodes", report.FreedNodes).
			Debug("octree tidied")
	}

	instrumentSync(report.Duration, report.Grown)
	return report
}

// changedRoots returns the changed objects that have no changed ancestor,
// ordered by id. The others are placed when their ancestor is.
func (s *Scene) changedRoots() []*Object {
	roots := make([]*Object, 0, len(s.changed))

	for _, obj := range s.changed {
		covered := false
		for p := obj.parent; p != nil; p = p.parent {
			if _, ok := s.changed[p.id]; ok {
				covered = true
				break
			}
		}
		if !covered {
			roots = append(roots, obj)
		}
	}

	sort.Slice(roots, func(i, j int) bool {
		return roots[i].id < roots[j].id
	})
	return roots
}

// Cull returns the objects that may be visible through the given frustum.
func (s *Scene) Cull(f octree.Frustum) []*Object {
	return toObjects(octree.CullFrustum(s.tree.RootNode(), f))
}

// Raycast returns the first object hit by the ray segment and the hit
// distance, in [0, 1] along the segment.
func (s *Scene) Raycast(r octree.Ray) (*Object, float64, bool) {
	obj, t, ok := octree.Raycast(s.tree.RootNode(), r)
	if !ok {
		return nil, t, false
	}
	return obj.(*Object), t, true
}

// QueryRegion returns the objects whose world bounds intersect region.
func (s *Scene) QueryRegion(region octree.AABB) []*Object {
	return toObjects(octree.QueryRegion(s.tree.RootNode(), region))
}

func (s *Scene) DebugInfo() octree.DebugInfo {
	return s.tree.DebugInfo()
}

func toObjects(objects []octree.Object) []*Object {
	res := make([]*Object, len(objects))
	for i, obj := range objects {
		res[i] = obj.(*Object)
	}
	return res
}

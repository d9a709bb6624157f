package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// GrownRootSize doubles rootSize, scaling rootLoose along, until rootLoose
// contains bounds. It returns the new root size and the number of doublings.
// bounds must be a valid box.
func GrownRootSize(rootSize float64, rootLoose, bounds AABB) (float64, int) {
	steps := 0
	for !rootLoose.Contains(bounds) {
		rootSize *= 2
		rootLoose = rootLoose.Scale(2)
		steps++
	}
	return rootSize, steps
}

// NeedsGrowth reports whether the tight bounds of the root node escape its
// loose bounds. The returned box is the tight bounds of the whole scene.
func (t *Octree) NeedsGrowth() (AABB, bool) {
	root := t.RootNode()
	if root == nil {
		return AABB{}, false
	}

	bounds, ok := root.Box()
	if !ok {
		return AABB{}, false
	}
	return bounds, !root.LooseBox().Contains(bounds)
}

// Grow rebuilds the octree with a root large enough to hold the current scene
// bounds. It returns false when no growth was needed.
func (t *Octree) Grow() (bool, error) {
	bounds, ok := t.NeedsGrowth()
	if !ok {
		return false, nil
	}

	rootSize, steps := GrownRootSize(t.rootSize, t.RootNode().LooseBox(), bounds)
	logs.WithTag("root_size", t.rootSize).
		WithTag("new_root_size", rootSize).
		WithTag("doublings", steps).
		Info("growing octree")

	return true, t.Rebuild(rootSize)
}

// Rebuild re-initializes the octree with the given root size and the current
// leaf size, then inserts again every object it was tracking.
func (t *Octree) Rebuild(rootSize float64) error {
	objects := make([]Object, 0, len(t.objects))
	for _, p := range t.objects {
		objects = append(objects, p.object)
	}

	if err := t.Initialize(rootSize, t.leafSize); err != nil {
		return errors.New("rebuilding octree failed").Wrap(err)
	}

	// Every descendant is tracked on its own, so there is no need to walk
	// the scene hierarchy again.
	for _, obj := range objects {
		t.place(obj)
	}

	instrumentRebuild()
	return nil
}

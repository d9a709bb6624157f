package octree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
)

// Loose Octree
//
// The octree is a chain of chunks going from the root level, a single node
// spanning the whole world, to the leaf level whose cells have the configured
// leaf size. Each level doubles the dimension of the previous one.
//
// Objects are stored in the finest node whose cell is at least 4 times their
// bounding radius. Queries use the loose bounds of nodes, which are 1.5 times
// their cell, so that an object stays inside the loose bounds of its node even
// when its center sits close to a cell boundary.
//
// An octree is not safe for concurrent use: mutations are expected to happen
// in a single sync phase per frame.

// maxLevelCount bounds the depth of the octree so that the linear cell index
// of the finest level, dimension^3, fits in an int. Deeper trees keep their
// root size and get finest cells larger than the leaf size.
const maxLevelCount = 21

type placement struct {
	object Object
	node   *Node
}

type Octree struct {
	rootSize float64
	leafSize float64
	chunks   []*Chunk
	objects  map[uint32]placement
	vacated  int
}

// New creates an octree whose root spans rootSize on every axis and whose
// finest cells are leafSize wide.
func New(rootSize, leafSize float64) (*Octree, error) {
	var t Octree
	if err := t.Initialize(rootSize, leafSize); err != nil {
		return nil, err
	}
	return &t, nil
}

// Initialize discards the previous state of the octree and rebuilds its chain
// of chunks.
func (t *Octree) Initialize(rootSize, leafSize float64) error {
	if math.IsNaN(leafSize) || math.IsInf(leafSize, 0) || leafSize <= 0 {
		return errors.New("leaf size must be a positive number").
			WithType(ErrTypeInvalidConfig).
			WithTag("leaf_size", leafSize)
	}
	if math.IsNaN(rootSize) || math.IsInf(rootSize, 0) || rootSize < leafSize {
		return errors.New("root size must be greater than or equal to the leaf size").
			WithType(ErrTypeInvalidConfig).
			WithTag("root_size", rootSize).
			WithTag("leaf_size", leafSize)
	}

	levelCount := 1
	for size := leafSize * 2; size <= rootSize; size *= 2 {
		levelCount++
	}
	if levelCount > maxLevelCount {
		logs.WithTag("root_size", rootSize).
			WithTag("leaf_size", leafSize).
			WithTag("levels", levelCount).
			WithTag("max_levels", maxLevelCount).
			Info("octree depth capped")
		levelCount = maxLevelCount
	}

	for _, c := range t.chunks {
		c.Clear()
	}

	chunks := make([]*Chunk, levelCount)
	for i := range chunks {
		chunks[i] = newChunk(i, rootSize)
		if i > 0 {
			chunks[i].coarser = chunks[i-1]
			chunks[i-1].finer = chunks[i]
		}
	}

	t.rootSize = rootSize
	t.leafSize = leafSize
	t.chunks = chunks
	t.objects = make(map[uint32]placement)
	t.vacated = 0

	logs.WithTag("root_size", rootSize).
		WithTag("leaf_size", leafSize).
		WithTag("levels", levelCount).
		Debug("octree initialized")
	return nil
}

func (t *Octree) RootSize() float64 {
	return t.rootSize
}

func (t *Octree) LeafSize() float64 {
	return t.leafSize
}

func (t *Octree) ChunkCount() int {
	return len(t.chunks)
}

// Chunk returns the chunk at the given level.
func (t *Octree) Chunk(level int) *Chunk {
	return t.chunks[level]
}

// RootNode returns the single node of level 0, or nil when it has not been
// created yet or was freed by a tidy pass.
func (t *Octree) RootNode() *Node {
	return t.chunks[0].GetNode(0)
}

func (t *Octree) rootNode() *Node {
	return t.chunks[0].GetOrCreateNode(0)
}

func (t *Octree) ObjectCount() int {
	return len(t.objects)
}

// NodeOf returns the node that currently holds obj.
func (t *Octree) NodeOf(obj Object) (*Node, bool) {
	p, ok := t.objects[obj.ID()]
	return p.node, ok
}

func (t *Octree) Contains(obj Object) bool {
	_, ok := t.objects[obj.ID()]
	return ok
}

// Vacated returns the number of nodes that lost their last object since the
// last tidy pass.
func (t *Octree) Vacated() int {
	return t.vacated
}

// LocateCell returns the node that should hold an object centered at center
// with the given bounding radius. hint is returned as is when it already is
// that node.
func (t *Octree) LocateCell(hint *Node, center mgl64.Vec3, radius float64) *Node {
	level, index := t.locate(center, radius)

	if hint != nil && !hint.IsFreed() && hint.Level() == level && hint.index == index {
		return hint
	}
	return t.chunks[level].GetOrCreateNodeChain(index)
}

func (t *Octree) locate(center mgl64.Vec3, radius float64) (int, int) {
	if !isFinite(center) || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return 0, 0
	}

	minCellSize := radius * 4
	for level := len(t.chunks) - 1; level > 0; level-- {
		c := t.chunks[level]
		if c.cellSize < minCellSize {
			continue
		}

		half := t.rootSize / 2
		x := int(math.Floor((center.X() + half) / c.cellSize))
		y := int(math.Floor((center.Y() + half) / c.cellSize))
		z := int(math.Floor((center.Z() + half) / c.cellSize))
		if !c.InBounds(x, y, z) {
			return 0, 0
		}
		return level, c.IndexOf(x, y, z)
	}
	return 0, 0
}

// PlaceObject moves obj, and then its scene children, to the node matching
// their current world bounds. It returns the node holding obj.
func (t *Octree) PlaceObject(obj Object) *Node {
	node := t.place(obj)

	pending := childrenOf(obj)
	for len(pending) > 0 {
		child := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		t.place(child)
		pending = append(pending, childrenOf(child)...)
	}
	return node
}

func (t *Octree) place(obj Object) *Node {
	previous, tracked := t.objects[obj.ID()]

	var node *Node
	bounds, ok := obj.WorldBounds()
	switch {
	case obj.CullingDisabled(), !ok, !bounds.IsValid():
		node = t.rootNode()

	default:
		node = t.LocateCell(previous.node, bounds.Center(), bounds.Radius())
	}

	relocated := !tracked || previous.node != node
	if relocated {
		if tracked {
			t.detach(obj, previous.node)
		}
		node.AddObject(obj)
		t.objects[obj.ID()] = placement{object: obj, node: node}
	}

	// The bounds of obj may have changed even when it stays in the same node.
	node.InvalidateBox()
	instrumentPlacement(relocated && tracked)
	return node
}

// RemoveObject removes obj and its scene children from the octree.
func (t *Octree) RemoveObject(obj Object) {
	pending := []Object{obj}
	for len(pending) > 0 {
		o := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if p, ok := t.objects[o.ID()]; ok {
			t.detach(o, p.node)
			delete(t.objects, o.ID())
			instrumentRemoval()
		}
		pending = append(pending, childrenOf(o)...)
	}
}

func (t *Octree) detach(obj Object, node *Node) {
	if !node.RemoveObject(obj) {
		return
	}
	if node.ObjectCount() == 0 {
		t.vacated++
	}
	node.InvalidateBox()
}

// Tidy frees every node that holds no object and has no live child. It
// returns the number of freed nodes.
func (t *Octree) Tidy() int {
	root := t.RootNode()
	if root == nil {
		t.vacated = 0
		return 0
	}

	freed := root.tidy()
	t.vacated = 0
	instrumentTidy(freed)
	return freed
}

// Traverse visits every node of the octree from the root.
func (t *Octree) Traverse(visit Visitor) {
	t.RootNode().Traverse(visit)
}

func childrenOf(obj Object) []Object {
	var children []Object
	obj.VisitChildren(func(child Object) {
		children = append(children, child)
	})
	return children
}

// NodeCount returns the number of allocated nodes across all levels.
func (t *Octree) NodeCount() int {
	count := 0
	for _, c := range t.chunks {
		count += c.NodeCount()
	}
	return count
}

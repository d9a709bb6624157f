package octree

import (
	"sort"
)

// Object is a scene object tracked by the octree. The octree never owns
// objects: it only keeps them in sets keyed by ID.
type Object interface {
	// Returns the stable identity of the object within its scene.
	ID() uint32

	// Returns the world bounding volume of the object. The second value is
	// false when no bound has been computed or when the object is not
	// spatially relevant.
	WorldBounds() (AABB, bool)

	// Reports whether the object is a light. Lights never contribute to the
	// tight bounds of a node.
	IsLight() bool

	// Reports whether the object opted out of culling. Such objects are kept
	// at the root node.
	CullingDisabled() bool

	// Calls fn for each child of the object in the scene hierarchy.
	VisitChildren(fn func(Object))
}

// Node is one cubic cell of a chunk.
type Node struct {
	chunk   *Chunk
	index   int
	objects map[uint32]Object

	box      AABB
	hasBox   bool
	boxDirty bool

	looseBox         AABB
	looseBoxComputed bool
}

func newNode(c *Chunk, index int) *Node {
	return &Node{
		chunk:    c,
		index:    index,
		objects:  make(map[uint32]Object),
		boxDirty: true,
	}
}

// Chunk returns the level owning the node. It panics when the node has been
// freed.
func (n *Node) Chunk() *Chunk {
	if n.chunk == nil {
		panic("octree: node is not attached to a chunk")
	}
	return n.chunk
}

func (n *Node) Level() int {
	return n.Chunk().level
}

func (n *Node) Index() int {
	return n.index
}

// IsFreed reports whether the node was removed from its chunk.
func (n *Node) IsFreed() bool {
	return n.chunk == nil
}

// AddObject adds obj to the node. It returns false when obj was already there.
func (n *Node) AddObject(obj Object) bool {
	if _, ok := n.objects[obj.ID()]; ok {
		return false
	}
	n.objects[obj.ID()] = obj
	return true
}

// RemoveObject removes obj from the node. It returns false when obj was not
// there.
func (n *Node) RemoveObject(obj Object) bool {
	if _, ok := n.objects[obj.ID()]; !ok {
		return false
	}
	delete(n.objects, obj.ID())
	return true
}

func (n *Node) HasObject(obj Object) bool {
	_, ok := n.objects[obj.ID()]
	return ok
}

func (n *Node) ObjectCount() int {
	return len(n.objects)
}

// Objects returns the objects owned by the node, ordered by ID.
func (n *Node) Objects() []Object {
	if len(n.objects) == 0 {
		return nil
	}

	objects := make([]Object, 0, len(n.objects))
	for _, obj := range n.objects {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID() < objects[j].ID()
	})
	return objects
}

// Box returns the tight bounds of the node: the union of its children tight
// bounds and of the world bounds of its non-light objects. The result is
// cached until InvalidateBox is called on the node or one of its descendants.
func (n *Node) Box() (AABB, bool) {
	if !n.boxDirty {
		return n.box, n.hasBox
	}

	var box AABB
	var hasBox bool
	merge := func(b AABB) {
		if !hasBox {
			box, hasBox = b, true
			return
		}
		box = box.Union(b)
	}

	for o := Octant(0); o < OctantCount; o++ {
		child := n.Child(o)
		if child == nil {
			continue
		}
		if b, ok := child.Box(); ok {
			merge(b)
		}
	}

	for _, obj := range n.objects {
		if obj.IsLight() {
			continue
		}
		if b, ok := obj.WorldBounds(); ok && b.IsValid() {
			merge(b)
		}
	}

	n.box, n.hasBox, n.boxDirty = box, hasBox, false
	return box, hasBox
}

// InvalidateBox marks the tight bounds of the node and of all its ancestors as
// stale. Descendants are left untouched.
func (n *Node) InvalidateBox() {
	for node := n; node != nil; node = node.Parent() {
		node.boxDirty = true
	}
}

// LooseBox returns the loose bounds of the node: its grid cell grown to 1.5
// times the cell size around the cell center.
func (n *Node) LooseBox() AABB {
	if n.looseBoxComputed {
		return n.looseBox
	}

	c := n.Chunk()
	x, y, z := c.Coords(n.index)
	half := c.rootSize / 2
	min := [3]float64{
		float64(x)*c.cellSize - half,
		float64(y)*c.cellSize - half,
		float64(z)*c.cellSize - half,
	}
	margin := (c.looseCellSize - c.cellSize) / 2

	for i := range min {
		n.looseBox.Min[i] = min[i] - margin
		n.looseBox.Max[i] = min[i] + c.cellSize + margin
	}
	n.looseBoxComputed = true
	return n.looseBox
}

// Child returns the child of the node in the given octant, or nil when it does
// not exist or when the node belongs to the leaf level.
func (n *Node) Child(o Octant) *Node {
	c := n.Chunk()
	if c.finer == nil {
		return nil
	}
	return c.finer.GetNode(c.ChildIndex(n.index, o))
}

// GetOrCreateChild returns the child of the node in the given octant, creating
// it when needed. It returns nil when the node belongs to the leaf level.
func (n *Node) GetOrCreateChild(o Octant) *Node {
	c := n.Chunk()
	if c.finer == nil {
		return nil
	}
	return c.finer.GetOrCreateNode(c.ChildIndex(n.index, o))
}

// Parent returns the node containing this node at the coarser level, or nil
// for the root node or when the parent does not exist.
func (n *Node) Parent() *Node {
	c := n.Chunk()
	if c.coarser == nil {
		return nil
	}
	return c.coarser.GetNode(c.ParentIndex(n.index))
}

// GetOrCreateParent returns the parent node, creating it when needed. It
// returns nil for the root node.
func (n *Node) GetOrCreateParent() *Node {
	c := n.Chunk()
	if c.coarser == nil {
		return nil
	}
	return c.coarser.GetOrCreateNode(c.ParentIndex(n.index))
}

// Tidy frees, in post-order, every node of the subtree that holds no object
// and has no live child. It returns true when the node itself was freed.
func (n *Node) Tidy() bool {
	n.tidy()
	return n.chunk == nil
}

// tidy returns the number of nodes freed in the subtree, and leaves n.chunk
// nil when n itself was freed.
func (n *Node) tidy() int {
	freed := 0
	liveChildren := OctantCount

	for o := Octant(0); o < OctantCount; o++ {
		child := n.Child(o)
		if child == nil {
			liveChildren--
			continue
		}

		freed += child.tidy()
		if child.chunk == nil {
			liveChildren--
		}
	}

	if len(n.objects) == 0 && liveChildren == 0 {
		n.chunk.FreeNode(n.index)
		freed++
	}
	return freed
}

// Visitor is called for each visited node. Returning false skips the children
// of that node.
type Visitor func(*Node) bool

// Traverse visits the node and its existing descendants depth-first, parents
// before children and children in octant order.
func (n *Node) Traverse(visit Visitor) {
	if n == nil {
		return
	}
	stack := []*Node{n}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(node) {
			continue
		}

		for o := Octant(OctantCount); o > 0; o-- {
			if child := node.Child(o - 1); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

package octree

// Octant selects one of the 8 children of a node. Bit 0 is the +x half, bit 1
// the +y half and bit 2 the +z half.
type Octant uint8

const OctantCount = 8

func (o Octant) offsets() (int, int, int) {
	return int(o & 1), int(o>>1) & 1, int(o>>2) & 1
}

// Chunk is one refinement level of the octree. It holds a sparse grid of
// dimension^3 nodes addressed by a linear index.
type Chunk struct {
	level         int
	dimension     int
	rootSize      float64
	cellSize      float64
	looseCellSize float64
	nodes         map[int]*Node

	coarser *Chunk
	finer   *Chunk
}

func newChunk(level int, rootSize float64) *Chunk {
	dimension := 1 << level
	cellSize := rootSize / float64(dimension)

	return &Chunk{
		level:         level,
		dimension:     dimension,
		rootSize:      rootSize,
		cellSize:      cellSize,
		looseCellSize: cellSize * 1.5,
		nodes:         make(map[int]*Node),
	}
}

func (c *Chunk) Level() int {
	return c.level
}

func (c *Chunk) Dimension() int {
	return c.dimension
}

func (c *Chunk) CellSize() float64 {
	return c.cellSize
}

func (c *Chunk) LooseCellSize() float64 {
	return c.looseCellSize
}

// Coarser returns the parent level or nil for the root level.
func (c *Chunk) Coarser() *Chunk {
	return c.coarser
}

// Finer returns the child level or nil for the leaf level.
func (c *Chunk) Finer() *Chunk {
	return c.finer
}

func (c *Chunk) NodeCount() int {
	return len(c.nodes)
}

// Coords decodes a linear index into grid coordinates.
func (c *Chunk) Coords(index int) (int, int, int) {
	d := c.dimension
	x := index % d
	y := (index / d) % d
	z := index / (d * d)
	return x, y, z
}

// IndexOf encodes grid coordinates into a linear index.
func (c *Chunk) IndexOf(x, y, z int) int {
	d := c.dimension
	return x + y*d + z*d*d
}

// InBounds reports whether grid coordinates address a cell of this level.
func (c *Chunk) InBounds(x, y, z int) bool {
	d := c.dimension
	return x >= 0 && x < d &&
		y >= 0 && y < d &&
		z >= 0 && z < d
}

// ChildIndex returns the index, at the finer level, of the given octant of the
// node at index.
func (c *Chunk) ChildIndex(index int, o Octant) int {
	x, y, z := c.Coords(index)
	ox, oy, oz := o.offsets()

	d := c.dimension * 2
	return (x*2 + ox) + (y*2+oy)*d + (z*2+oz)*d*d
}

// ParentIndex returns the index, at the coarser level, of the node containing
// the node at index.
func (c *Chunk) ParentIndex(index int) int {
	x, y, z := c.Coords(index)

	d := c.dimension / 2
	return (x >> 1) + (y>>1)*d + (z>>1)*d*d
}

func (c *Chunk) GetNode(index int) *Node {
	return c.nodes[index]
}

func (c *Chunk) GetOrCreateNode(index int) *Node {
	if n, ok := c.nodes[index]; ok {
		return n
	}

	n := newNode(c, index)
	c.nodes[index] = n
	instrumentNodeCreated(c.level)
	return n
}

// GetOrCreateNodeChain makes sure the node at index and all of its ancestors
// up to the root exist, and returns the node at index.
func (c *Chunk) GetOrCreateNodeChain(index int) *Node {
	node := c.GetOrCreateNode(index)

	chunk, i := c, index
	for chunk.coarser != nil {
		i = chunk.ParentIndex(i)
		chunk = chunk.coarser
		chunk.GetOrCreateNode(i)
	}
	return node
}

// FreeNode removes the node at index from the level. It does not cascade to
// ancestors or descendants.
func (c *Chunk) FreeNode(index int) {
	n, ok := c.nodes[index]
	if !ok {
		return
	}

	delete(c.nodes, index)
	n.chunk = nil
	instrumentNodesFreed(c.level, 1)
}

// Clear removes every node of the level.
func (c *Chunk) Clear() {
	for _, n := range c.nodes {
		n.chunk = nil
	}
	instrumentNodesFreed(c.level, len(c.nodes))
	c.nodes = make(map[int]*Node)
}

package octree

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestInitializeLevelCount(t *testing.T) {
	for k := 0; k <= 6; k++ {
		rootSize := 64 * math.Pow(2, float64(k))

		tree, err := New(rootSize, 64)
		require.NoError(t, err)
		require.Equal(t, k+1, tree.ChunkCount())
		require.Equal(t, rootSize, tree.RootSize())
		require.Equal(t, 64.0, tree.LeafSize())

		for i := 0; i < tree.ChunkCount(); i++ {
			c := tree.Chunk(i)
			require.Equal(t, i, c.Level())
			require.Equal(t, 1<<i, c.Dimension())
			require.Equal(t, rootSize/float64(c.Dimension()), c.CellSize())

			if i > 0 {
				require.Same(t, tree.Chunk(i-1), c.Coarser())
				require.Equal(t, 2*c.Coarser().Dimension(), c.Dimension())
			} else {
				require.Nil(t, c.Coarser())
			}
		}
		require.Nil(t, tree.Chunk(k).Finer())
	}

	t.Run("root size not a power of two multiple", func(t *testing.T) {
		tree, err := New(100, 30)
		require.NoError(t, err)
		require.Equal(t, 2, tree.ChunkCount())
	})

	t.Run("depth is capped", func(t *testing.T) {
		tree, err := New(1<<23, 1)
		require.NoError(t, err)
		require.Equal(t, maxLevelCount, tree.ChunkCount())
		require.Equal(t, 1.0, tree.LeafSize())

		leaf := tree.Chunk(tree.ChunkCount() - 1)
		require.Equal(t, 1<<20, leaf.Dimension())
		require.Equal(t, 8.0, leaf.CellSize())
	})
}

func TestDeepTreeFarCorner(t *testing.T) {
	tree, err := New(1<<23, 1)
	require.NoError(t, err)

	edge := float64(1<<22) - 0.5
	obj := newTestObject(1, mgl64.Vec3{edge, edge, edge}, 0.1)
	n := tree.PlaceObject(obj)
	require.Equal(t, tree.ChunkCount()-1, n.Level())

	x, y, z := n.Chunk().Coords(n.index)
	last := n.Chunk().Dimension() - 1
	require.Equal(t, []int{last, last, last}, []int{x, y, z})

	bounds, ok := obj.WorldBounds()
	require.True(t, ok)
	require.True(t, n.LooseBox().Contains(bounds))
	require.Equal(t, []uint32{1}, objectIDs(QueryRegion(tree.RootNode(), bounds)))

	finest := tree.Chunk(tree.ChunkCount() - 1)
	coarser := tree.Chunk(tree.ChunkCount() - 2)
	parent := n.Parent()
	require.NotNil(t, parent)
	require.Equal(t, finest.ParentIndex(n.index), parent.index)
	require.Equal(t, n.index, coarser.ChildIndex(parent.index, 7))
	require.Equal(t, parent.index, finest.ParentIndex(coarser.ChildIndex(parent.index, 7)))
}

func TestInitializeInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		rootSize float64
		leafSize float64
	}{
		{name: "zero leaf size", rootSize: 64, leafSize: 0},
		{name: "negative leaf size", rootSize: 64, leafSize: -8},
		{name: "root smaller than leaf", rootSize: 32, leafSize: 64},
		{name: "nan root size", rootSize: math.NaN(), leafSize: 8},
		{name: "infinite leaf size", rootSize: 64, leafSize: math.Inf(1)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tree, err := New(test.rootSize, test.leafSize)
			require.Error(t, err)
			require.Nil(t, tree)
			require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
		})
	}

	t.Run("failed initialize keeps the previous state", func(t *testing.T) {
		tree, err := New(64, 8)
		require.NoError(t, err)
		tree.PlaceObject(newTestObject(1, mgl64.Vec3{}, 1))

		require.Error(t, tree.Initialize(4, 8))
		require.Equal(t, 64.0, tree.RootSize())
		require.Equal(t, 1, tree.ObjectCount())
	})
}

func TestInitializeDiscardsPreviousState(t *testing.T) {
	tree, err := New(64, 8)
	require.NoError(t, err)

	obj := newTestObject(1, mgl64.Vec3{}, 1)
	old := tree.PlaceObject(obj)

	require.NoError(t, tree.Initialize(128, 8))
	require.Zero(t, tree.ObjectCount())
	require.False(t, tree.Contains(obj))
	require.True(t, old.IsFreed())
	require.Equal(t, 5, tree.ChunkCount())
}

func TestLocateCellExample(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)
	require.Equal(t, 6, tree.ChunkCount())

	for i, size := range []float64{2048, 1024, 512, 256, 128, 64} {
		require.Equal(t, size, tree.Chunk(i).CellSize())
	}

	n := tree.LocateCell(nil, mgl64.Vec3{0, 0, 0}, 10)
	require.Equal(t, 5, n.Level())
	require.Equal(t, 64.0, n.Chunk().CellSize())
	require.Equal(t, tree.Chunk(5).IndexOf(16, 16, 16), n.Index())
}

func TestLocateCellSizeConstraint(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	centers := []mgl64.Vec3{
		{0, 0, 0},
		{-1000, 500, 12},
		{1023, -1023, 1023},
		{-3.5, 700, -640},
	}

	for _, center := range centers {
		for radius := 0.0; radius <= 600; radius += 7.5 {
			n := tree.LocateCell(nil, center, radius)
			level := n.Level()

			if level > 0 {
				require.GreaterOrEqual(t, n.Chunk().CellSize(), 4*radius)
				require.True(t, n.LooseBox().Contains(NewAABBFromCenter(center, mgl64.Vec3{radius, radius, radius})))
			}
			if finer := n.Chunk().Finer(); finer != nil && level > 0 {
				require.Less(t, finer.CellSize(), 4*radius)
			}
			if level == 0 {
				require.Less(t, tree.Chunk(1).CellSize(), 4*radius)
			}
		}
	}
}

func TestLocateCellFallsBackToRoot(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	tests := []struct {
		name   string
		center mgl64.Vec3
		radius float64
	}{
		{name: "outside the grid", center: mgl64.Vec3{5000, 0, 0}, radius: 1},
		{name: "on the upper grid boundary", center: mgl64.Vec3{0, 1024, 0}, radius: 1},
		{name: "too large for any finer level", center: mgl64.Vec3{0, 0, 0}, radius: 300},
		{name: "nan center", center: mgl64.Vec3{math.NaN(), 0, 0}, radius: 1},
		{name: "infinite radius", center: mgl64.Vec3{0, 0, 0}, radius: math.Inf(1)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n := tree.LocateCell(nil, test.center, test.radius)
			require.Same(t, tree.RootNode(), n)
		})
	}
}

func TestLocateCellHint(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	hint := tree.LocateCell(nil, mgl64.Vec3{10, 10, 10}, 3)
	require.Same(t, hint, tree.LocateCell(hint, mgl64.Vec3{12, 10, 10}, 3))

	other := tree.LocateCell(hint, mgl64.Vec3{500, 10, 10}, 3)
	require.NotSame(t, hint, other)
}

func TestPlaceObject(t *testing.T) {
	t.Run("placing twice returns the same node", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := newTestObject(1, mgl64.Vec3{100, 200, 300}, 10)
		first := tree.PlaceObject(obj)
		nodeCount := tree.DebugInfo().NodeCount

		second := tree.PlaceObject(obj)
		require.Same(t, first, second)
		require.Equal(t, nodeCount, tree.DebugInfo().NodeCount)
		require.Equal(t, 1, second.ObjectCount())
	})

	t.Run("moving object is relocated", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := newTestObject(1, mgl64.Vec3{100, 200, 300}, 10)
		before := tree.PlaceObject(obj)

		obj.moveTo(mgl64.Vec3{-700, 20, 30})
		after := tree.PlaceObject(obj)
		require.NotSame(t, before, after)
		require.False(t, before.HasObject(obj))
		require.True(t, after.HasObject(obj))
		require.Equal(t, 1, tree.Vacated())

		n, ok := tree.NodeOf(obj)
		require.True(t, ok)
		require.Same(t, after, n)
		require.Equal(t, 1, tree.ObjectCount())
	})

	t.Run("growing object moves up", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := newTestObject(1, mgl64.Vec3{100, 200, 300}, 10)
		require.Equal(t, 5, tree.PlaceObject(obj).Level())

		obj.bounds = NewAABBFromCenter(mgl64.Vec3{100, 200, 300}, mgl64.Vec3{100, 10, 10})
		require.Equal(t, 2, tree.PlaceObject(obj).Level())
	})

	t.Run("culling disabled goes to root", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := newTestObject(1, mgl64.Vec3{100, 200, 300}, 10)
		obj.noCulling = true
		n := tree.PlaceObject(obj)
		require.Same(t, tree.RootNode(), n)
	})

	t.Run("missing bounds goes to root", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := &testObject{id: 1}
		n := tree.PlaceObject(obj)
		require.Same(t, tree.RootNode(), n)
	})

	t.Run("nan bounds goes to root", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		obj := newTestObject(1, mgl64.Vec3{math.NaN(), 0, 0}, 1)
		n := tree.PlaceObject(obj)
		require.Same(t, tree.RootNode(), n)
	})

	t.Run("children are placed", func(t *testing.T) {
		tree, err := New(2048, 64)
		require.NoError(t, err)

		grandChild := newTestObject(3, mgl64.Vec3{-500, -500, -500}, 1)
		child := newTestObject(2, mgl64.Vec3{500, 500, 500}, 1)
		child.children = []*testObject{grandChild}
		parent := newTestObject(1, mgl64.Vec3{0, 0, 0}, 1)
		parent.children = []*testObject{child}

		tree.PlaceObject(parent)
		require.Equal(t, 3, tree.ObjectCount())
		require.True(t, tree.Contains(child))
		require.True(t, tree.Contains(grandChild))

		n, ok := tree.NodeOf(grandChild)
		require.True(t, ok)
		require.True(t, n.LooseBox().Contains(grandChild.bounds))
	})
}

func TestRemoveObject(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	child := newTestObject(2, mgl64.Vec3{500, 500, 500}, 1)
	parent := newTestObject(1, mgl64.Vec3{0, 0, 0}, 1)
	parent.children = []*testObject{child}

	node := tree.PlaceObject(parent)
	childNode, _ := tree.NodeOf(child)

	tree.RemoveObject(parent)
	require.Zero(t, tree.ObjectCount())
	require.False(t, node.HasObject(parent))
	require.False(t, childNode.HasObject(child))
	require.Equal(t, 2, tree.Vacated())

	_, ok := tree.RootNode().Box()
	require.False(t, ok)

	// Removing an untracked object is a no-op.
	tree.RemoveObject(parent)
	require.Equal(t, 2, tree.Vacated())
}

func TestRemoveObjectThenTidy(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	kept := newTestObject(1, mgl64.Vec3{-1000, -1000, -1000}, 1)
	removed := newTestObject(2, mgl64.Vec3{1000, 1000, 1000}, 1)
	keptNode := tree.PlaceObject(kept)
	removedNode := tree.PlaceObject(removed)

	var removedChain []*Node
	for n := removedNode; n.Level() > 0; n = n.Parent() {
		removedChain = append(removedChain, n)
	}
	var keptChain []*Node
	for n := keptNode; n != nil; n = n.Parent() {
		keptChain = append(keptChain, n)
	}

	tree.RemoveObject(removed)
	freed := tree.Tidy()
	require.Equal(t, len(removedChain), freed)
	require.Zero(t, tree.Vacated())

	for _, n := range removedChain {
		require.True(t, n.IsFreed())
	}
	for _, n := range keptChain {
		require.False(t, n.IsFreed())
	}
	require.True(t, keptNode.HasObject(kept))

	t.Run("tidy keeps nodes holding objects", func(t *testing.T) {
		mid := newTestObject(3, mgl64.Vec3{-1000, -1000, -1000}, 100)
		midNode := tree.PlaceObject(mid)
		require.Less(t, midNode.Level(), keptNode.Level())

		tree.RemoveObject(kept)
		tree.Tidy()
		require.True(t, keptNode.IsFreed())
		require.False(t, midNode.IsFreed())
		require.True(t, midNode.HasObject(mid))
	})

	t.Run("tidy on an empty tree frees the root", func(t *testing.T) {
		tree, err := New(64, 8)
		require.NoError(t, err)

		root := tree.Chunk(0).GetOrCreateNode(0)
		require.Equal(t, 1, tree.Tidy())
		require.True(t, root.IsFreed())
		require.Zero(t, tree.Tidy())
	})
}

func TestReadsDoNotCreateRoot(t *testing.T) {
	tree, err := New(64, 8)
	require.NoError(t, err)
	require.Nil(t, tree.RootNode())

	obj := newTestObject(1, mgl64.Vec3{1, 1, 1}, 1)
	tree.PlaceObject(obj)
	tree.RemoveObject(obj)
	require.Positive(t, tree.Tidy())
	require.Nil(t, tree.RootNode())
	require.Zero(t, tree.NodeCount())

	tree.Traverse(func(n *Node) bool {
		t.Fatalf("unexpected node at level %d", n.Level())
		return true
	})
	_, needsGrowth := tree.NeedsGrowth()
	require.False(t, needsGrowth)
	require.Empty(t, QueryRegion(tree.RootNode(), NewAABB(mgl64.Vec3{-32, -32, -32}, mgl64.Vec3{32, 32, 32})))
	require.Empty(t, CullFrustum(tree.RootNode(), NewFrustum(mgl64.Perspective(mgl64.DegToRad(60), 1, 1, 100))))
	_, _, ok := Raycast(tree.RootNode(), Ray{From: mgl64.Vec3{-32, 0, 0}, To: mgl64.Vec3{32, 0, 0}})
	require.False(t, ok)
	require.Zero(t, tree.NodeCount())

	tree.PlaceObject(obj)
	require.NotNil(t, tree.RootNode())
}

func TestTraverse(t *testing.T) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	for i, center := range []mgl64.Vec3{{0, 0, 0}, {900, 900, 900}, {-900, 0, 900}} {
		tree.PlaceObject(newTestObject(uint32(i+1), center, 1))
	}

	objects := 0
	nodes := 0
	tree.Traverse(func(n *Node) bool {
		nodes++
		objects += n.ObjectCount()
		return true
	})
	require.Equal(t, 3, objects)
	require.Equal(t, tree.DebugInfo().NodeCount, nodes)
}

package octree

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newQueryTree(t *testing.T) (*Octree, []*testObject) {
	tree, err := New(2048, 64)
	require.NoError(t, err)

	objects := []*testObject{
		newTestObject(1, mgl64.Vec3{0, 0, -50}, 5),
		newTestObject(2, mgl64.Vec3{0, 0, -500}, 50),
		newTestObject(3, mgl64.Vec3{0, 0, 300}, 5),
		newTestObject(4, mgl64.Vec3{900, 0, -50}, 5),
		{id: 5},
	}
	for _, obj := range objects {
		tree.PlaceObject(obj)
	}
	return tree, objects
}

func objectIDs(objects []Object) []uint32 {
	ids := make([]uint32, 0, len(objects))
	for _, obj := range objects {
		ids = append(ids, obj.ID())
	}
	return ids
}

func TestCullFrustum(t *testing.T) {
	tree, _ := newQueryTree(t)

	projection := mgl64.Perspective(mgl64.DegToRad(60), 1, 1, 1000)
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 1, 0})
	frustum := NewFrustum(projection.Mul4(view))

	visible := CullFrustum(tree.RootNode(), frustum)
	require.ElementsMatch(t, []uint32{1, 2, 5}, objectIDs(visible))

	t.Run("frustum outside the world still returns unbounded objects", func(t *testing.T) {
		view := mgl64.LookAtV(mgl64.Vec3{0, 50000, 0}, mgl64.Vec3{0, 60000, 0}, mgl64.Vec3{0, 0, 1})
		frustum := NewFrustum(projection.Mul4(view))

		visible := CullFrustum(tree.RootNode(), frustum)
		require.Equal(t, []uint32{5}, objectIDs(visible))
	})
}

func TestRaycast(t *testing.T) {
	tree, _ := newQueryTree(t)

	t.Run("nearest hit", func(t *testing.T) {
		obj, d, ok := Raycast(tree.RootNode(), Ray{From: mgl64.Vec3{0, 0, 0}, To: mgl64.Vec3{0, 0, -1000}})
		require.True(t, ok)
		require.Equal(t, uint32(1), obj.ID())
		require.InDelta(t, 45.0/1000.0, d, 1e-9)
	})

	t.Run("hit behind a near object", func(t *testing.T) {
		obj, _, ok := Raycast(tree.RootNode(), Ray{From: mgl64.Vec3{0, 30, 0}, To: mgl64.Vec3{0, 30, -1000}})
		require.True(t, ok)
		require.Equal(t, uint32(2), obj.ID())
	})

	t.Run("miss", func(t *testing.T) {
		obj, _, ok := Raycast(tree.RootNode(), Ray{From: mgl64.Vec3{0, 500, 0}, To: mgl64.Vec3{0, 500, -1000}})
		require.False(t, ok)
		require.Nil(t, obj)
	})
}

func TestQueryRegion(t *testing.T) {
	tree, _ := newQueryTree(t)

	objects := QueryRegion(tree.RootNode(), NewAABB(mgl64.Vec3{-100, -100, -600}, mgl64.Vec3{100, 100, 0}))
	require.Equal(t, []uint32{1, 2}, objectIDs(objects))

	objects = QueryRegion(tree.RootNode(), NewAABB(mgl64.Vec3{800, -10, -100}, mgl64.Vec3{1000, 10, 0}))
	require.Equal(t, []uint32{4}, objectIDs(objects))

	require.Empty(t, QueryRegion(tree.RootNode(), NewAABB(mgl64.Vec3{5000, 5000, 5000}, mgl64.Vec3{6000, 6000, 6000})))
}

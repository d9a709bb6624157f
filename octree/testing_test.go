package octree

import (
	"github.com/go-gl/mathgl/mgl64"
)

type testObject struct {
	id        uint32
	bounds    AABB
	hasBounds bool
	light     bool
	noCulling bool
	children  []*testObject
}

func newTestObject(id uint32, center mgl64.Vec3, radius float64) *testObject {
	return &testObject{
		id:        id,
		bounds:    NewAABBFromCenter(center, mgl64.Vec3{radius, radius, radius}),
		hasBounds: true,
	}
}

func (o *testObject) ID() uint32 {
	return o.id
}

func (o *testObject) WorldBounds() (AABB, bool) {
	return o.bounds, o.hasBounds
}

func (o *testObject) IsLight() bool {
	return o.light
}

func (o *testObject) CullingDisabled() bool {
	return o.noCulling
}

func (o *testObject) VisitChildren(fn func(Object)) {
	for _, c := range o.children {
		fn(c)
	}
}

func (o *testObject) moveTo(center mgl64.Vec3) {
	e := o.bounds.HalfExtents()
	o.bounds = NewAABBFromCenter(center, e)
}

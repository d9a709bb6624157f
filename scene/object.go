package scene

import (
	"github.com/aukilabs/ingwaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// Object is a node of the scene graph. Its world transform is derived from
// its local position, rotation and scale and from its parent's world
// transform.
//
// Objects are not safe for concurrent use. Setters are expected to be called
// from the frame goroutine, between two calls to Scene.Sync.
type Object struct {
	Name string

	id       uint32
	scene    *Scene
	parent   *Object
	children []*Object

	light     bool
	noCulling bool

	position mgl64.Vec3
	rotation mgl64.Quat
	scale    mgl64.Vec3

	localBounds    octree.AABB
	hasLocalBounds bool

	world       mgl64.Mat4
	worldBounds octree.AABB
	worldDirty  bool
}

// NewObject returns a detached object with an identity transform and no
// bounds.
func NewObject(name string) *Object {
	return &Object{
		Name:       name,
		rotation:   mgl64.QuatIdent(),
		scale:      mgl64.Vec3{1, 1, 1},
		world:      mgl64.Ident4(),
		worldDirty: true,
	}
}

// NewMesh returns a detached object bounded by the given local box.
func NewMesh(name string, bounds octree.AABB) *Object {
	o := NewObject(name)
	o.localBounds = bounds
	o.hasLocalBounds = true
	return o
}

// NewLight returns a detached light whose influence is a cube of the given
// radius around its position.
func NewLight(name string, radius float64) *Object {
	o := NewMesh(name, octree.NewAABBFromCenter(mgl64.Vec3{}, mgl64.Vec3{radius, radius, radius}))
	o.light = true
	return o
}

// ID returns the arena id of the object, or 0 when it is not attached to a
// scene.
func (o *Object) ID() uint32 {
	return o.id
}

func (o *Object) Scene() *Scene {
	return o.scene
}

func (o *Object) Parent() *Object {
	return o.parent
}

func (o *Object) Children() []*Object {
	return o.children
}

func (o *Object) IsLight() bool {
	return o.light
}

func (o *Object) CullingDisabled() bool {
	return o.noCulling
}

// SetCullingDisabled makes the object always pass culling. Such objects are
// kept in the root node of the octree.
func (o *Object) SetCullingDisabled(v bool) {
	o.noCulling = v
	o.changed()
}

func (o *Object) Position() mgl64.Vec3 {
	return o.position
}

func (o *Object) SetPosition(v mgl64.Vec3) {
	o.position = v
	o.transformChanged()
}

// Translate moves the object by v in its parent space.
func (o *Object) Translate(v mgl64.Vec3) {
	o.SetPosition(o.position.Add(v))
}

func (o *Object) Rotation() mgl64.Quat {
	return o.rotation
}

func (o *Object) SetRotation(q mgl64.Quat) {
	o.rotation = q.Normalize()
	o.transformChanged()
}

func (o *Object) Scale() mgl64.Vec3 {
	return o.scale
}

func (o *Object) SetScale(v mgl64.Vec3) {
	o.scale = v
	o.transformChanged()
}

// LocalBounds returns the bounding box of the object in its own space.
func (o *Object) LocalBounds() (octree.AABB, bool) {
	return o.localBounds, o.hasLocalBounds
}

func (o *Object) SetLocalBounds(b octree.AABB) {
	o.localBounds = b
	o.hasLocalBounds = true
	o.worldDirty = true
	o.changed()
}

// ClearLocalBounds makes the object spatially irrelevant. It then lives in the
// root node of the octree.
func (o *Object) ClearLocalBounds() {
	o.localBounds = octree.AABB{}
	o.hasLocalBounds = false
	o.worldDirty = true
	o.changed()
}

// LocalMatrix returns translation * rotation * scale.
func (o *Object) LocalMatrix() mgl64.Mat4 {
	t := mgl64.Translate3D(o.position.X(), o.position.Y(), o.position.Z())
	s := mgl64.Scale3D(o.scale.X(), o.scale.Y(), o.scale.Z())
	return t.Mul4(o.rotation.Mat4()).Mul4(s)
}

// WorldMatrix returns the transform from the object space to the world space.
// It is cached until the object or one of its ancestors moves.
func (o *Object) WorldMatrix() mgl64.Mat4 {
	o.updateWorld()
	return o.world
}

// WorldPosition returns the origin of the object in world space.
func (o *Object) WorldPosition() mgl64.Vec3 {
	return mgl64.TransformCoordinate(mgl64.Vec3{}, o.WorldMatrix())
}

// WorldBounds returns the local bounds transformed to world space.
func (o *Object) WorldBounds() (octree.AABB, bool) {
	if !o.hasLocalBounds {
		return octree.AABB{}, false
	}
	o.updateWorld()
	return o.worldBounds, true
}

func (o *Object) VisitChildren(fn func(octree.Object)) {
	for _, c := range o.children {
		fn(c)
	}
}

// Walk calls fn for the object and all its descendants, parents first.
func (o *Object) Walk(fn func(*Object)) {
	pending := []*Object{o}
	for len(pending) > 0 {
		obj := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		fn(obj)
		for i := len(obj.children) - 1; i >= 0; i-- {
			pending = append(pending, obj.children[i])
		}
	}
}

func (o *Object) updateWorld() {
	if !o.worldDirty {
		return
	}

	local := o.LocalMatrix()
	if o.parent != nil {
		o.world = o.parent.WorldMatrix().Mul4(local)
	} else {
		o.world = local
	}

	if o.hasLocalBounds {
		o.worldBounds = o.localBounds.Transform(o.world)
	}
	o.worldDirty = false
}

func (o *Object) transformChanged() {
	o.Walk(func(obj *Object) {
		obj.worldDirty = true
	})
	o.changed()
}

func (o *Object) changed() {
	if o.scene != nil {
		o.scene.markChanged(o)
	}
}

func (o *Object) addChild(c *Object) {
	c.parent = o
	o.children = append(o.children, c)
}

func (o *Object) removeChild(c *Object) {
	for i, child := range o.children {
		if child == c {
			o.children = append(o.children[:i], o.children[i+1:]...)
			break
		}
	}
	c.parent = nil
}

var _ octree.Object = (*Object)(nil)

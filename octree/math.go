package octree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func isFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func NewAABB(min, max mgl64.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// NewAABBFromCenter builds a box from its center and half-extents.
func NewAABBFromCenter(center, halfExtents mgl64.Vec3) AABB {
	return AABB{
		Min: center.Sub(halfExtents),
		Max: center.Add(halfExtents),
	}
}

// IsValid reports whether the box has finite components and is not inverted.
func (b AABB) IsValid() bool {
	if !isFinite(b.Min) || !isFinite(b.Max) {
		return false
	}
	return b.Min.X() <= b.Max.X() &&
		b.Min.Y() <= b.Max.Y() &&
		b.Min.Z() <= b.Max.Z()
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) HalfExtents() mgl64.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Radius returns the largest half-extent.
func (b AABB) Radius() float64 {
	e := b.HalfExtents()
	return math.Max(e.X(), math.Max(e.Y(), e.Z()))
}

func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(b.Min.X(), o.Min.X()), math.Min(b.Min.Y(), o.Min.Y()), math.Min(b.Min.Z(), o.Min.Z())},
		Max: mgl64.Vec3{math.Max(b.Max.X(), o.Max.X()), math.Max(b.Max.Y(), o.Max.Y()), math.Max(b.Max.Z(), o.Max.Z())},
	}
}

func (b AABB) Contains(o AABB) bool {
	return b.Min.X() <= o.Min.X() && b.Min.Y() <= o.Min.Y() && b.Min.Z() <= o.Min.Z() &&
		b.Max.X() >= o.Max.X() && b.Max.Y() >= o.Max.Y() && b.Max.Z() >= o.Max.Z()
}

func (b AABB) Intersects(o AABB) bool {
	return !(b.Max.X() < o.Min.X() || b.Min.X() > o.Max.X() ||
		b.Max.Y() < o.Min.Y() || b.Min.Y() > o.Max.Y() ||
		b.Max.Z() < o.Min.Z() || b.Min.Z() > o.Max.Z())
}

// Scale multiplies both corners by s, scaling the box about the world origin.
func (b AABB) Scale(s float64) AABB {
	return AABB{Min: b.Min.Mul(s), Max: b.Max.Mul(s)}
}

// Transform returns the box enclosing the 8 corners of b transformed by m.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	var result AABB
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{b.Min.X(), b.Min.Y(), b.Min.Z()}
		if i&1 != 0 {
			corner[0] = b.Max.X()
		}
		if i&2 != 0 {
			corner[1] = b.Max.Y()
		}
		if i&4 != 0 {
			corner[2] = b.Max.Z()
		}

		p := mgl64.TransformCoordinate(corner, m)
		if i == 0 {
			result = AABB{Min: p, Max: p}
			continue
		}
		result = result.Union(AABB{Min: p, Max: p})
	}
	return result
}

// Ray is a segment going from From to To. Hit distances are expressed as t in
// [0, 1] along the segment.
type Ray struct {
	From mgl64.Vec3
	To   mgl64.Vec3
}

func (r Ray) Direction() mgl64.Vec3 {
	return r.To.Sub(r.From)
}

// IntersectRay runs a slab test of the ray segment against the box. It returns
// the entry t, clamped to 0 when the ray starts inside the box.
func (b AABB) IntersectRay(r Ray) (bool, float64) {
	dir := r.Direction()
	tmin, tmax := 0.0, 1.0

	for axis := 0; axis < 3; axis++ {
		origin := r.From[axis]
		if dir[axis] == 0 {
			if origin < b.Min[axis] || origin > b.Max[axis] {
				return false, -1
			}
			continue
		}

		inv := 1 / dir[axis]
		t1 := (b.Min[axis] - origin) * inv
		t2 := (b.Max[axis] - origin) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false, -1
		}
	}
	return true, tmin
}

// Plane is the half-space Normal·p + D >= 0.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

func (p Plane) DistanceTo(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

func normalizePlane(v mgl64.Vec4) Plane {
	n := mgl64.Vec3{v.X(), v.Y(), v.Z()}
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v.W() / l}
}

// Frustum holds the six clip planes of a view frustum: left, right, bottom,
// top, near and far.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the clip planes of a view-projection matrix using the
// Gribb/Hartmann method.
func NewFrustum(viewProjection mgl64.Mat4) Frustum {
	r0 := viewProjection.Row(0)
	r1 := viewProjection.Row(1)
	r2 := viewProjection.Row(2)
	r3 := viewProjection.Row(3)

	return Frustum{
		Planes: [6]Plane{
			normalizePlane(r3.Add(r0)),
			normalizePlane(r3.Sub(r0)),
			normalizePlane(r3.Add(r1)),
			normalizePlane(r3.Sub(r1)),
			normalizePlane(r3.Add(r2)),
			normalizePlane(r3.Sub(r2)),
		},
	}
}

// IntersectsFrustum returns false only when the box is entirely outside one of
// the frustum planes.
func (b AABB) IntersectsFrustum(f Frustum) bool {
	for _, p := range f.Planes {
		positive := b.Min
		if p.Normal.X() >= 0 {
			positive[0] = b.Max.X()
		}
		if p.Normal.Y() >= 0 {
			positive[1] = b.Max.Y()
		}
		if p.Normal.Z() >= 0 {
			positive[2] = b.Max.Z()
		}

		if p.DistanceTo(positive) < 0 {
			return false
		}
	}
	return true
}

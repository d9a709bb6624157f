package octree

import (
	"math"
	"sort"
)

// The root node is never pruned: it also holds the objects that could not be
// placed deeper, whose bounds may exceed its loose bounds. A nil root is an
// empty tree.

// CullFrustum returns the objects of the subtree starting at root that may be
// visible from frustum. Subtrees whose loose bounds are outside the frustum are
// skipped. Objects without usable bounds cannot be culled and are always
// returned.
func CullFrustum(root *Node, frustum Frustum) []Object {
	var visible []Object

	root.Traverse(func(n *Node) bool {
		if n.Level() > 0 && !n.LooseBox().IntersectsFrustum(frustum) {
			return false
		}

		for _, obj := range n.Objects() {
			b, ok := obj.WorldBounds()
			if !ok || !b.IsValid() || b.IntersectsFrustum(frustum) {
				visible = append(visible, obj)
			}
		}
		return true
	})
	return visible
}

// Raycast returns the object whose bounds are hit first by the ray segment,
// along with the hit distance t in [0, 1].
func Raycast(root *Node, r Ray) (Object, float64, bool) {
	var hit Object
	tMin := math.Inf(1)

	root.Traverse(func(n *Node) bool {
		if n.Level() > 0 {
			ok, t := n.LooseBox().IntersectRay(r)
			if !ok || t > tMin {
				return false
			}
		}

		for _, obj := range n.Objects() {
			b, ok := obj.WorldBounds()
			if !ok || !b.IsValid() {
				continue
			}
			if ok, t := b.IntersectRay(r); ok && t < tMin {
				hit, tMin = obj, t
			}
		}
		return true
	})

	if hit == nil {
		return nil, -1, false
	}
	return hit, tMin, true
}

// QueryRegion returns the objects whose world bounds intersect region, ordered
// by ID.
func QueryRegion(root *Node, region AABB) []Object {
	var objects []Object

	root.Traverse(func(n *Node) bool {
		if n.Level() > 0 && !n.LooseBox().Intersects(region) {
			return false
		}

		for _, obj := range n.Objects() {
			if b, ok := obj.WorldBounds(); ok && b.IsValid() && b.Intersects(region) {
				objects = append(objects, obj)
			}
		}
		return true
	})

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].ID() < objects[j].ID()
	})
	return objects
}

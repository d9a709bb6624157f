package octree

// SpatialPartition is the spatial index consumed by a scene.
type SpatialPartition interface {
	PlaceObject(obj Object) *Node
	RemoveObject(obj Object)
	Tidy() int
	Grow() (bool, error)

	RootNode() *Node
	ObjectCount() int

	// debug stuff:
	DebugInfo() DebugInfo
}

var _ SpatialPartition = (*Octree)(nil)

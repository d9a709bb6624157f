package octree

const (
	// ErrTypeInvalidConfig is the error type returned when an octree is
	// initialized with an unusable root or leaf size.
	ErrTypeInvalidConfig = "octree_invalid_config"
)

package featureflag

type Flag string

const (
	// Keeps the octree at its configured root size. Objects outside the root
	// bounds then accumulate in the root node.
	FlagDisableGrowth Flag = "DISABLE_OCTREE_GROWTH"

	// Stops freeing empty octree nodes during scene syncs.
	FlagDisableTidy Flag = "DISABLE_OCTREE_TIDY"

	// Stops publishing frame reports to the inspector.
	FlagDisableInspector Flag = "DISABLE_INSPECTOR"
)

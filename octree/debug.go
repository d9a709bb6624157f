package octree

import (
	"gonum.org/v1/gonum/stat"
)

type LevelDebugInfo struct {
	Level       int     `json:"level"`
	Dimension   int     `json:"dimension"`
	CellSize    float64 `json:"cell_size"`
	NodeCount   int     `json:"node_count"`
	ObjectCount int     `json:"object_count"`
}

type DebugInfo struct {
	RootSize    float64          `json:"root_size"`
	LeafSize    float64          `json:"leaf_size"`
	ObjectCount int              `json:"object_count"`
	NodeCount   int              `json:"node_count"`
	Levels      []LevelDebugInfo `json:"levels"`

	// Objects per occupied node.
	OccupancyMean   float64 `json:"occupancy_mean"`
	OccupancyStdDev float64 `json:"occupancy_std_dev"`
}

func (t *Octree) DebugInfo() DebugInfo {
	result := DebugInfo{
		RootSize:    t.rootSize,
		LeafSize:    t.leafSize,
		ObjectCount: len(t.objects),
		Levels:      make([]LevelDebugInfo, len(t.chunks)),
	}

	var occupancy []float64
	for i, c := range t.chunks {
		info := LevelDebugInfo{
			Level:     c.level,
			Dimension: c.dimension,
			CellSize:  c.cellSize,
			NodeCount: len(c.nodes),
		}

		for _, n := range c.nodes {
			if count := n.ObjectCount(); count > 0 {
				info.ObjectCount += count
				occupancy = append(occupancy, float64(count))
			}
		}

		result.Levels[i] = info
		result.NodeCount += info.NodeCount
	}

	switch len(occupancy) {
	case 0:
	case 1:
		result.OccupancyMean = occupancy[0]
	default:
		result.OccupancyMean, result.OccupancyStdDev = stat.MeanStdDev(occupancy, nil)
	}
	return result
}

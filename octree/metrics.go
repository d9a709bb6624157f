package octree

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	levelLabel = "level"
)

var (
	octreeNodeCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "octree_node_count",
		Help: "The number of allocated octree nodes.",
	}, []string{levelLabel})

	octreePlacements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_placements",
		Help: "The number of object placements.",
	})

	octreeRelocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_relocations",
		Help: "The number of placements that moved an object to another node.",
	})

	octreeRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_removals",
		Help: "The number of objects removed from the octree.",
	})

	octreeRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_rebuilds",
		Help: "The number of growth rebuilds.",
	})

	octreeFreedNodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_freed_nodes",
		Help: "The number of nodes freed by tidy passes.",
	})
)

func instrumentNodeCreated(level int) {
	octreeNodeCount.
		With(prometheus.Labels{levelLabel: strconv.Itoa(level)}).
		Inc()
}

func instrumentNodesFreed(level int, count int) {
	octreeNodeCount.
		With(prometheus.Labels{levelLabel: strconv.Itoa(level)}).
		Sub(float64(count))
}

func instrumentPlacement(relocated bool) {
	octreePlacements.Inc()
	if relocated {
		octreeRelocations.Inc()
	}
}

func instrumentRemoval() {
	octreeRemovals.Inc()
}

func instrumentRebuild() {
	octreeRebuilds.Inc()
}

func instrumentTidy(freed int) {
	octreeFreedNodes.Add(float64(freed))
}

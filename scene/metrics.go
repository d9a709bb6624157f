package scene

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sceneObjectCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_object_count",
		Help: "The number of objects attached to scenes.",
	})

	sceneSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_sync_latency_seconds",
		Help:    "The time spent updating the spatial index at the end of a frame.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	sceneGrowths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_growths",
		Help: "The number of syncs that had to grow the octree.",
	})
)

func instrumentObjectsAttached(count int) {
	sceneObjectCount.Add(float64(count))
}

func instrumentObjectsDetached(count int) {
	sceneObjectCount.Sub(float64(count))
}

func instrumentSync(d time.Duration, grown bool) {
	sceneSyncLatency.Observe(d.Seconds())
	if grown {
		sceneGrowths.Inc()
	}
}

package main

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/ingwaz/featureflag"
	"github.com/aukilabs/ingwaz/inspector"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/aukilabs/ingwaz/simulation"
)

type frameLoop struct {
	Scene          *scene.Scene
	Simulation     *simulation.Simulation
	Hub            *inspector.Hub
	FrameDuration  time.Duration
	ReportInterval time.Duration
	FeatureFlags   featureflag.FeatureFlag

	// Called after each frame.
	OnFrame func()
}

// runFrames steps the simulation and syncs the scene once per frame until ctx
// is done. The scene is only touched from this goroutine.
func runFrames(ctx context.Context, l frameLoop) {
	frameTicker := time.NewTicker(l.FrameDuration)
	defer frameTicker.Stop()

	reportTicker := time.NewTicker(l.ReportInterval)
	defer reportTicker.Stop()

	var summary frameSummary
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-frameTicker.C:
			if err := l.Simulation.Step(now.Sub(last)); err != nil {
				logs.Warn(err)
			}
			last = now

			report := l.Scene.Sync()
			summary.add(report)

			l.FeatureFlags.IfNotSet(featureflag.FlagDisableInspector, func() {
				l.Hub.PublishReport(report)
			})
			if l.OnFrame != nil {
				l.OnFrame()
			}

		case <-reportTicker.C:
			info := l.Scene.DebugInfo()

			l.FeatureFlags.IfNotSet(featureflag.FlagDisableInspector, func() {
				if latest, ok := l.Hub.Latest(); ok {
					l.Hub.Publish(latest.Report, info)
				}
			})

			logs.WithTag("scene", l.Scene.UUID).
				WithTag("frames", summary.frames).
				WithTag("placed", summary.placed).
				WithTag("growths", summary.growths).
				WithTag("freed_nodes", summary.freedNodes).
				WithTag("max_sync_duration", summary.maxDuration.String()).
				WithTag("root_size", info.RootSize).
				WithTag("objects", info.ObjectCount).
				WithTag("nodes", info.NodeCount).
				WithTag("occupancy_mean", info.OccupancyMean).
				Info("octree summary")
			summary = frameSummary{}
		}
	}
}

type frameSummary struct {
	frames      int
	placed      int
	growths     int
	freedNodes  int
	maxDuration time.Duration
}

func (s *frameSummary) add(r scene.FrameReport) {
	s.frames++
	s.placed += r.Placed
	s.freedNodes += r.FreedNodes
	if r.Grown {
		s.growths++
	}
	if r.Duration > s.maxDuration {
		s.maxDuration = r.Duration
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/ingwaz/featureflag"
	ingwazhttp "github.com/aukilabs/ingwaz/http"
	"github.com/aukilabs/ingwaz/inspector"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/aukilabs/ingwaz/simulation"
	"github.com/aukilabs/ingwaz/smoketest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Ingwaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "ingwaz_info",
		Help:        "Ingwaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config struct from being obfuscated, which would garble the
// command-line options generated by the cli package.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr       string           `cli:""        env:"INGWAZ_ADMIN_ADDR"        help:"Admin listening address."`
	LogLevel        string           `cli:""        env:"INGWAZ_LOG_LEVEL"         help:"Log level (debug|info|warning|error)."`
	LogIndent       bool             `cli:""        env:"INGWAZ_LOG_INDENT"        help:"Indent logs."`
	FrameDuration   time.Duration    `cli:""        env:"INGWAZ_FRAME_DURATION"    help:"The duration of a scene frame."`
	ReportInterval  time.Duration    `cli:",hidden" env:"INGWAZ_REPORT_INTERVAL"   help:"The duration between each octree summary log and debug snapshot."`
	FeedHeartbeat   time.Duration    `cli:",hidden" env:"INGWAZ_FEED_HEARTBEAT"    help:"The maximum duration without message on the inspector feed."`
	ShutdownTimeout time.Duration    `cli:",hidden" env:"INGWAZ_SHUTDOWN_TIMEOUT"  help:"The time given to servers to finish in flight requests on exit."`
	Octree          octreeConfig     `cli:""        env:"-"                        help:"Octree configuration."`
	Simulation      simulationConfig `cli:",hidden" env:"-"                        help:"Simulated workload configuration."`
	SmokeTest       smokeTestConfig  `cli:",hidden" env:"-"                        help:"Smoke test configuration."`
	Events          eventsConfig     `cli:",hidden" env:"-"                        help:"Event pusher configuration."`
	FeatureFlags    []string         `cli:",hidden" env:"INGWAZ_FEATURE_FLAGS"     help:"Comma separated feature flags."`
	Version         bool             `cli:""        env:"-"                        help:"Show version."`
	Help            bool             `cli:""        env:"-"                        help:"Show help."`
}

type octreeConfig struct {
	RootSize      float64 `cli:"" env:"INGWAZ_OCTREE_ROOT_SIZE"      help:"The initial size of the octree root cell."`
	LeafSize      float64 `cli:"" env:"INGWAZ_OCTREE_LEAF_SIZE"      help:"The size of the finest octree cells."`
	TidyInterval  int     `cli:"" env:"INGWAZ_OCTREE_TIDY_INTERVAL"  help:"The number of frames between each tidy pass."`
	TidyThreshold int     `cli:"" env:"INGWAZ_OCTREE_TIDY_THRESHOLD" help:"The number of vacated nodes that triggers an early tidy pass."`
}

type simulationConfig struct {
	Seed        int     `cli:",hidden" env:"INGWAZ_SIMULATION_SEED"          help:"The seed of the simulated workload."`
	ObjectCount int     `cli:",hidden" env:"INGWAZ_SIMULATION_OBJECT_COUNT"  help:"The number of objects spawned at start."`
	WorldSize   float64 `cli:",hidden" env:"INGWAZ_SIMULATION_WORLD_SIZE"    help:"The size of the area where objects move."`
	MaxSpeed    float64 `cli:",hidden" env:"INGWAZ_SIMULATION_MAX_SPEED"     help:"The maximum object speed, in units per second."`
	MaxHalfSize float64 `cli:",hidden" env:"INGWAZ_SIMULATION_MAX_HALF_SIZE" help:"The maximum object half size."`
	SpawnRate   float64 `cli:",hidden" env:"INGWAZ_SIMULATION_SPAWN_RATE"    help:"The probability to spawn an object each frame."`
	DespawnRate float64 `cli:",hidden" env:"INGWAZ_SIMULATION_DESPAWN_RATE"  help:"The probability to despawn an object each frame."`
	LightRate   float64 `cli:",hidden" env:"INGWAZ_SIMULATION_LIGHT_RATE"    help:"The probability for a spawned object to carry a light."`
}

type smokeTestConfig struct {
	ObjectCount int           `cli:",hidden" env:"INGWAZ_SMOKE_TEST_OBJECT_COUNT" help:"The number of objects of a smoke test scene."`
	Frames      int           `cli:",hidden" env:"INGWAZ_SMOKE_TEST_FRAMES"       help:"The number of frames of a smoke test."`
	Timeout     time.Duration `cli:",hidden" env:"INGWAZ_SMOKE_TEST_TIMEOUT"      help:"The maximum duration of a smoke test."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"INGWAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are disabled when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"INGWAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"INGWAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"INGWAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		AdminAddr:       ":18290",
		LogLevel:        logs.InfoLevel.String(),
		FrameDuration:   time.Millisecond * 16,
		ReportInterval:  time.Second * 10,
		FeedHeartbeat:   time.Second * 5,
		ShutdownTimeout: time.Second * 5,
		Octree: octreeConfig{
			RootSize:      1024,
			LeafSize:      4,
			TidyInterval:  scene.DefaultTidyInterval,
			TidyThreshold: scene.DefaultTidyThreshold,
		},
		Simulation: simulationConfig{
			Seed:        1,
			ObjectCount: 2000,
			WorldSize:   1024,
			MaxSpeed:    20,
			MaxHalfSize: 4,
			SpawnRate:   0.2,
			DespawnRate: 0.2,
			LightRate:   0.1,
		},
		SmokeTest: smokeTestConfig{
			ObjectCount: 200,
			Frames:      300,
			Timeout:     time.Second * 30,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts an Ingwaz spatial index server driven by a simulated scene.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "ingwaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	s, err := scene.New(scene.Options{
		RootSize:      conf.Octree.RootSize,
		LeafSize:      conf.Octree.LeafSize,
		TidyInterval:  conf.Octree.TidyInterval,
		TidyThreshold: conf.Octree.TidyThreshold,
		FeatureFlags:  featureFlags,
	})
	if err != nil {
		logs.Fatal(errors.New("creating scene failed").Wrap(err))
	}

	sim, err := simulation.New(s, simulation.Options{
		Seed:        uint64(conf.Simulation.Seed),
		ObjectCount: conf.Simulation.ObjectCount,
		WorldSize:   conf.Simulation.WorldSize,
		MaxSpeed:    conf.Simulation.MaxSpeed,
		MaxHalfSize: conf.Simulation.MaxHalfSize,
		SpawnRate:   conf.Simulation.SpawnRate,
		DespawnRate: conf.Simulation.DespawnRate,
		LightRate:   conf.Simulation.LightRate,
	})
	if err != nil {
		logs.Fatal(errors.New("creating simulation failed").Wrap(err))
	}

	var hub inspector.Hub
	var ready atomic.Bool

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		runFrames(ctx, frameLoop{
			Scene:          s,
			Simulation:     sim,
			Hub:            &hub,
			FrameDuration:  conf.FrameDuration,
			ReportInterval: conf.ReportInterval,
			FeatureFlags:   featureFlags,
			OnFrame: func() {
				ready.Store(true)
			},
		})
	}()

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", ingwazhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", ingwazhttp.HandleReadyCheck(ready.Load))
	admin.HandleFunc("/version", ingwazhttp.HandleVersion(version))
	admin.Handle("/debug/octree", ingwazhttp.HandleWithCORS(inspector.HandleSnapshot(&hub)))
	admin.Handle("/debug/octree/feed", websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error {
			return nil
		},
		Handler: inspector.HandleFeed(ctx, &hub, conf.FeedHeartbeat),
	})
	admin.Handle("/smoke-test", ingwazhttp.HandleWithCORS(smoketest.HandleSmokeTest(ctx, smoketest.Options{
		RootSize:    conf.Octree.RootSize,
		LeafSize:    conf.Octree.LeafSize,
		ObjectCount: conf.SmokeTest.ObjectCount,
		Frames:      conf.SmokeTest.Frames,
		Timeout:     conf.SmokeTest.Timeout,
		SendResult: func(_ context.Context, res smoketest.Results) error {
			logs.WithTag("status", res.Status).
				WithTag("frames", res.Frames).
				WithTag("growths", res.Growths).
				WithTag("freed_nodes", res.FreedNodes).
				WithTag("duration_ms", res.DurationMilliSec).
				Info("smoke test finished")
			return nil
		},
	})))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("scene", s.UUID).
		WithTag("root_size", conf.Octree.RootSize).
		WithTag("leaf_size", conf.Octree.LeafSize).
		WithTag("feature_flags", featureFlags.Flags()).
		Info("starting ingwaz server")

	ingwazhttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.AdminAddr, Handler: metrics.HTTPHandler(&admin,
			ingwazhttp.MetricsPathFormatter)},
	)

	wg.Wait()
}

func validateConfig(conf config) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.ReportInterval <= 0 {
		return errors.New("report interval must be positive").
			WithTag("report_interval", conf.ReportInterval)
	}

	if conf.Octree.LeafSize <= 0 || conf.Octree.RootSize < conf.Octree.LeafSize {
		return errors.New("octree root size must be greater than or equal to a positive leaf size").
			WithTag("root_size", conf.Octree.RootSize).
			WithTag("leaf_size", conf.Octree.LeafSize)
	}

	return nil
}

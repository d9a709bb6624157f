package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/aukilabs/ingwaz/simulation"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	ErrTypeMisplacedObject = "smoketest_misplaced_object"
	ErrTypeLeakedNode      = "smoketest_leaked_node"
)

// Request is the body of a smoke test request. Zero fields take the defaults
// of Options.
type Request struct {
	Seed        uint64        `json:"seed"`
	ObjectCount int           `json:"object_count"`
	Frames      int           `json:"frames"`
	Timeout     time.Duration `json:"timeout"`
}

// Results describes the outcome of a smoke test.
type Results struct {
	Status           string  `json:"status"`
	Error            string  `json:"error,omitempty"`
	Frames           int     `json:"frames"`
	Growths          int     `json:"growths"`
	FreedNodes       int     `json:"freed_nodes"`
	RootSize         float64 `json:"root_size"`
	DurationMilliSec float64 `json:"duration_ms"`
}

type Options struct {
	RootSize    float64
	LeafSize    float64
	ObjectCount int
	Frames      int
	Timeout     time.Duration
	SendResult  func(context.Context, Results) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest returns a handler that runs a smoke test in the background
// and reports its results with opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
		}

		runOpts := RunOptions{
			Seed:        req.Seed,
			RootSize:    opts.RootSize,
			LeafSize:    opts.LeafSize,
			ObjectCount: pick(req.ObjectCount, opts.ObjectCount),
			Frames:      pick(req.Frames, opts.Frames),
			Timeout:     pick(req.Timeout, opts.Timeout),
		}

		go func() {
			defer func() {
				// Tests attach a testContext to know when the run is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, runOpts)
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("seed", runOpts.Seed).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

func pick[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

type RunOptions struct {
	Seed        uint64
	RootSize    float64
	LeafSize    float64
	ObjectCount int
	Frames      int
	Timeout     time.Duration
}

// Run drives a scratch scene through placements, moves, growths and removals,
// and checks after every frame that each object lies in the loose bounds of
// its node. It ends by removing every object and checking that a tidy pass
// frees the whole octree.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	start := time.Now()
	res := Results{Status: StatusFailure}

	if opts.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	err := run(ctx, opts, &res)
	res.DurationMilliSec = float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("seed", opts.Seed).
			Wrap(err)
	}

	res.Status = StatusSuccess
	logs.WithTag("frames", res.Frames).
		WithTag("growths", res.Growths).
		WithTag("root_size", res.RootSize).
		WithTag("duration_ms", res.DurationMilliSec).
		Info("smoke test succeeded")
	return res, nil
}

func run(ctx context.Context, opts RunOptions, res *Results) error {
	s, err := scene.New(scene.Options{
		RootSize:      opts.RootSize,
		LeafSize:      opts.LeafSize,
		TidyInterval:  10,
		TidyThreshold: 16,
	})
	if err != nil {
		return errors.New("creating smoke test scene failed").Wrap(err)
	}

	sim, err := simulation.New(s, simulation.Options{
		Seed:        opts.Seed,
		ObjectCount: opts.ObjectCount,
		WorldSize:   opts.RootSize * 4,
		MaxSpeed:    opts.RootSize / 2,
		MaxHalfSize: opts.LeafSize,
		SpawnRate:   0.3,
		DespawnRate: 0.3,
		LightRate:   0.2,
	})
	if err != nil {
		return errors.New("creating smoke test simulation failed").Wrap(err)
	}

	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return errors.New("smoke test interrupted").
				WithTag("frame", i).
				Wrap(err)
		}

		if err := sim.Step(time.Millisecond * 16); err != nil {
			return err
		}

		report := s.Sync()
		res.Frames++
		res.FreedNodes += report.FreedNodes
		if report.Grown {
			res.Growths++
		}

		if err := checkPlacements(s); err != nil {
			return errors.New("checking placements failed").
				WithTag("frame", report.Frame).
				Wrap(err)
		}
	}
	res.RootSize = s.Tree().RootSize()

	for _, obj := range s.Objects() {
		if obj.Parent() != nil {
			continue
		}
		if err := s.Detach(obj); err != nil {
			return err
		}
	}

	res.FreedNodes += s.Tree().Tidy()
	if count := s.Tree().NodeCount(); count != 0 {
		return errors.New("nodes left after removing every object").
			WithType(ErrTypeLeakedNode).
			WithTag("node_count", count)
	}
	return nil
}

func checkPlacements(s *scene.Scene) error {
	if s.ObjectCount() != s.Tree().ObjectCount() {
		return errors.New("scene and octree object counts differ").
			WithType(ErrTypeMisplacedObject).
			WithTag("scene", s.ObjectCount()).
			WithTag("octree", s.Tree().ObjectCount())
	}

	for _, obj := range s.Objects() {
		n, ok := s.Tree().NodeOf(obj)
		if !ok {
			return errors.New("object is not in the octree").
				WithType(ErrTypeMisplacedObject).
				WithTag("name", obj.Name)
		}

		b, ok := obj.WorldBounds()
		if !ok || n.Level() == 0 {
			continue
		}
		if !n.LooseBox().Contains(b) {
			return errors.New("object is outside of its node loose bounds").
				WithType(ErrTypeMisplacedObject).
				WithTag("name", obj.Name).
				WithTag("level", n.Level()).
				WithTag("index", n.Index())
		}
	}
	return nil
}

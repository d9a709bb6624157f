package simulation

import (
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T) *scene.Scene {
	s, err := scene.New(scene.Options{
		RootSize:      256,
		LeafSize:      8,
		TidyInterval:  10,
		TidyThreshold: 32,
	})
	require.NoError(t, err)
	return s
}

func testOptions() Options {
	return Options{
		Seed:        42,
		ObjectCount: 50,
		WorldSize:   1000,
		MaxSpeed:    200,
		MaxHalfSize: 4,
		SpawnRate:   0.5,
		DespawnRate: 0.5,
		LightRate:   0.3,
	}
}

func TestNew(t *testing.T) {
	s := newTestScene(t)

	_, err := New(s, Options{WorldSize: 0, MaxHalfSize: 1})
	require.Error(t, err)
	require.Equal(t, ErrTypeInvalidOptions, errors.Type(err))

	sim, err := New(s, testOptions())
	require.NoError(t, err)
	require.Equal(t, 50, sim.BodyCount())
	require.GreaterOrEqual(t, s.ObjectCount(), 50)
}

func TestSimulationStep(t *testing.T) {
	s := newTestScene(t)
	sim, err := New(s, testOptions())
	require.NoError(t, err)

	for range 120 {
		require.NoError(t, sim.Step(time.Millisecond*16))
		report := s.Sync()
		require.Equal(t, s.ObjectCount(), report.ObjectCount)
	}

	require.Greater(t, s.Tree().RootSize(), 256.0)

	for _, obj := range s.Objects() {
		n, ok := s.Tree().NodeOf(obj)
		require.True(t, ok)

		if b, ok := obj.WorldBounds(); ok && n.Level() > 0 {
			require.True(t, n.LooseBox().Contains(b))
		}
	}
}

func TestSimulationIsDeterministic(t *testing.T) {
	run := func() []float64 {
		s := newTestScene(t)
		sim, err := New(s, testOptions())
		require.NoError(t, err)

		for range 30 {
			require.NoError(t, sim.Step(time.Millisecond*16))
			s.Sync()
		}

		var positions []float64
		for _, b := range sim.bodies {
			p := b.obj.Position()
			positions = append(positions, p.X(), p.Y(), p.Z())
		}
		return positions
	}

	require.Equal(t, run(), run())
}

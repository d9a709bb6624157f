package simulation

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/ingwaz/octree"
	"github.com/aukilabs/ingwaz/scene"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeInvalidOptions = "simulation_invalid_options"
)

// Options configures the generated workload.
type Options struct {
	// The seed of the random generator. Two simulations with the same seed
	// and options produce the same scene.
	Seed uint64

	// The number of bodies spawned at start.
	ObjectCount int

	// The size of the cube, centered on the origin, where bodies spawn and
	// bounce.
	WorldSize float64

	// The maximum speed of a body, in world units per second.
	MaxSpeed float64

	// The maximum half size of a body.
	MaxHalfSize float64

	// The probability for each frame to spawn a body.
	SpawnRate float64

	// The probability for each frame to despawn a body.
	DespawnRate float64

	// The probability for a spawned body to carry a light as a child.
	LightRate float64
}

type body struct {
	obj      *scene.Object
	velocity mgl64.Vec3
	spin     float64
}

// Simulation moves, spawns and despawns objects in a scene to exercise its
// spatial index.
type Simulation struct {
	options Options
	scene   *scene.Scene
	rand    *rand.Rand
	bodies  []*body
	spawned int
}

// New creates a simulation and spawns its initial bodies in s.
func New(s *scene.Scene, o Options) (*Simulation, error) {
	if o.ObjectCount < 0 || o.WorldSize <= 0 || o.MaxHalfSize <= 0 || o.MaxSpeed < 0 {
		return nil, errors.New("invalid simulation options").
			WithType(ErrTypeInvalidOptions).
			WithTag("object_count", o.ObjectCount).
			WithTag("world_size", o.WorldSize).
			WithTag("max_half_size", o.MaxHalfSize).
			WithTag("max_speed", o.MaxSpeed)
	}

	sim := &Simulation{
		options: o,
		scene:   s,
		rand:    rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15)),
	}

	for range o.ObjectCount {
		if err := sim.spawn(); err != nil {
			return nil, err
		}
	}

	logs.WithTag("scene", s.UUID).
		WithTag("objects", o.ObjectCount).
		WithTag("seed", o.Seed).
		Info("simulation started")
	return sim, nil
}

func (s *Simulation) BodyCount() int {
	return len(s.bodies)
}

// Step advances the simulation by dt. Objects are only modified: the scene
// applies the changes to its octree on its next sync.
func (s *Simulation) Step(dt time.Duration) error {
	seconds := dt.Seconds()
	half := s.options.WorldSize / 2

	for _, b := range s.bodies {
		p := b.obj.Position().Add(b.velocity.Mul(seconds))
		for i := 0; i < 3; i++ {
			if p[i] < -half || p[i] > half {
				b.velocity[i] = -b.velocity[i]
				p[i] = math.Max(-half, math.Min(half, p[i]))
			}
		}
		b.obj.SetPosition(p)

		if b.spin != 0 {
			r := mgl64.QuatRotate(b.spin*seconds, mgl64.Vec3{0, 1, 0})
			b.obj.SetRotation(r.Mul(b.obj.Rotation()))
		}
	}

	if len(s.bodies) > 0 && s.rand.Float64() < s.options.DespawnRate {
		if err := s.despawn(s.rand.IntN(len(s.bodies))); err != nil {
			return err
		}
	}

	if s.rand.Float64() < s.options.SpawnRate {
		return s.spawn()
	}
	return nil
}

func (s *Simulation) spawn() error {
	s.spawned++
	halfSize := s.options.MaxHalfSize * (0.1 + 0.9*s.rand.Float64())

	obj := scene.NewMesh("body-"+strconv.Itoa(s.spawned), octree.NewAABBFromCenter(
		mgl64.Vec3{},
		mgl64.Vec3{halfSize, halfSize * (0.5 + s.rand.Float64()), halfSize},
	))
	obj.SetPosition(s.randomVec(s.options.WorldSize / 2))

	if err := s.scene.Attach(obj, nil); err != nil {
		return errors.New("spawning body failed").Wrap(err)
	}

	if s.rand.Float64() < s.options.LightRate {
		light := scene.NewLight("light-"+strconv.Itoa(s.spawned), halfSize*4)
		light.SetPosition(mgl64.Vec3{0, halfSize * 2, 0})

		if err := s.scene.Attach(light, obj); err != nil {
			return errors.New("attaching body light failed").Wrap(err)
		}
	}

	speed := s.options.MaxSpeed * s.rand.Float64()
	s.bodies = append(s.bodies, &body{
		obj:      obj,
		velocity: s.randomDirection().Mul(speed),
		spin:     (s.rand.Float64() - 0.5) * math.Pi,
	})
	return nil
}

func (s *Simulation) despawn(i int) error {
	b := s.bodies[i]
	if err := s.scene.Detach(b.obj); err != nil {
		return errors.New("despawning body failed").
			WithTag("name", b.obj.Name).
			Wrap(err)
	}

	last := len(s.bodies) - 1
	s.bodies[i] = s.bodies[last]
	s.bodies = s.bodies[:last]
	return nil
}

func (s *Simulation) randomVec(extent float64) mgl64.Vec3 {
	return mgl64.Vec3{
		(s.rand.Float64()*2 - 1) * extent,
		(s.rand.Float64()*2 - 1) * extent,
		(s.rand.Float64()*2 - 1) * extent,
	}
}

func (s *Simulation) randomDirection() mgl64.Vec3 {
	for {
		v := s.randomVec(1)
		if l := v.Len(); l > 1e-6 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}

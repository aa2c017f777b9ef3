package sensor

import (
	"context"
	"math/rand/v2"
	"sync"
)

// EnvironmentSensor reads temperature, humidity, pressure and VOC index.
type EnvironmentSensor interface {
	ReadEnvironment(ctx context.Context) (Environment, error)
}

// MotionSensor reads acceleration and angular rate.
type MotionSensor interface {
	ReadMotion(ctx context.Context) (Motion, error)
}

// SimulatedBME690 stands in for the gas sensor when no hardware is attached.
// Readings random-walk from room conditions and are clamped to the sensor's
// rated ranges.
type SimulatedBME690 struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last Environment
}

// NewSimulatedBME690 starts the walk at 25 °C, 50 %RH, 1013.25 hPa, VOC 100.
func NewSimulatedBME690(seed int64) *SimulatedBME690 {
	return &SimulatedBME690{
		rng: rand.New(rand.NewPCG(uint64(seed), 0x6d65)),
		last: Environment{
			Temperature: 25.0,
			Humidity:    50.0,
			Pressure:    1013.25,
			VOC:         100,
		},
	}
}

// Set moves the walk to env, e.g. to stage a scenario from a test console.
func (s *SimulatedBME690) Set(env Environment) {
	s.mu.Lock()
	s.last = env
	s.mu.Unlock()
}

func (s *SimulatedBME690) ReadEnvironment(ctx context.Context) (Environment, error) {
	if err := ctx.Err(); err != nil {
		return Environment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	step := func(scale float64) float64 { return float64(s.rng.IntN(10)-5) * scale }

	s.last.Temperature = clamp(s.last.Temperature+step(0.1), -40, 85)
	s.last.Humidity = clamp(s.last.Humidity+step(0.5), 0, 100)
	s.last.Pressure = clamp(s.last.Pressure+step(0.1), 900, 1100)
	voc := int64(s.last.VOC) + int64(s.rng.IntN(20)-10)
	s.last.VOC = uint32(clamp(float64(voc), 0, 1000))

	return s.last, nil
}

// SimulatedBMI270 stands in for the inertial sensor: a badge lying flat
// (1 g on Z) with small jitter on every axis.
type SimulatedBMI270 struct {
	mu   sync.Mutex
	rng  *rand.Rand
	base Motion
}

// NewSimulatedBMI270 returns a stationary simulated IMU.
func NewSimulatedBMI270(seed int64) *SimulatedBMI270 {
	return &SimulatedBMI270{
		rng:  rand.New(rand.NewPCG(uint64(seed), 0x626d69)),
		base: Motion{Accel: Vector3{Z: 1.0}},
	}
}

// Set replaces the baseline around which jitter is applied.
func (s *SimulatedBMI270) Set(m Motion) {
	s.mu.Lock()
	s.base = m
	s.mu.Unlock()
}

func (s *SimulatedBMI270) ReadMotion(ctx context.Context) (Motion, error) {
	if err := ctx.Err(); err != nil {
		return Motion{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	jitter := func(scale float64) float64 { return float64(s.rng.IntN(100)-50) * scale }

	return Motion{
		Accel: Vector3{
			X: s.base.Accel.X + jitter(0.001),
			Y: s.base.Accel.Y + jitter(0.001),
			Z: s.base.Accel.Z + jitter(0.001),
		},
		Gyro: Vector3{
			X: s.base.Gyro.X + jitter(0.01),
			Y: s.base.Gyro.Y + jitter(0.01),
			Z: s.base.Gyro.Z + jitter(0.01),
		},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

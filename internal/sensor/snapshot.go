// Package sensor samples the environmental and motion sensors on a fixed
// period and publishes a consistent Snapshot of the latest readings.
package sensor

import (
	"math"
	"time"
)

// Vector3 is a three-axis reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Environment is one reading of the gas/climate sensor in engineering units.
type Environment struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH, 0-100
	Pressure    float64 `json:"pressure"`    // hPa
	VOC         uint32  `json:"voc"`         // unitless index
}

// Motion is one reading of the inertial sensor.
type Motion struct {
	Accel Vector3 `json:"accel"` // g
	Gyro  Vector3 `json:"gyro"`  // deg/s
}

// Snapshot is the most recent fully consistent set of readings plus the
// quantities derived from them. It is replaced as a whole on every sample.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	SampledAt time.Time `json:"sampled_at"`

	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	VOC         uint32  `json:"voc"`
	Accel       Vector3 `json:"accel"`
	Gyro        Vector3 `json:"gyro"`

	MovementMagnitude float64 `json:"movement_magnitude"`
	TiltAngle         float64 `json:"tilt_angle"` // degrees
}

// Valid reports whether the snapshot holds a real sample. The zero Snapshot
// exists only until the first successful read.
func (s Snapshot) Valid() bool {
	return s.Seq > 0
}

// NewSnapshot builds a snapshot and derives movement and tilt from the same
// acceleration sample.
func NewSnapshot(seq uint64, at time.Time, env Environment, m Motion) Snapshot {
	return Snapshot{
		Seq:               seq,
		SampledAt:         at,
		Temperature:       env.Temperature,
		Humidity:          env.Humidity,
		Pressure:          env.Pressure,
		VOC:               env.VOC,
		Accel:             m.Accel,
		Gyro:              m.Gyro,
		MovementMagnitude: m.Accel.Magnitude(),
		TiltAngle:         TiltAngle(m.Accel),
	}
}

// TiltAngle is atan2(ay, az) in degrees.
func TiltAngle(accel Vector3) float64 {
	return math.Atan2(accel.Y, accel.Z) * 180 / math.Pi
}

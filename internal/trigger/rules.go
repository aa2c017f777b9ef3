package trigger

import (
	"math"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
)

// Rule thresholds.
const (
	RainHumidity     = 85.0 // %RH, exclusive
	ColdTemperature  = 15.0 // °C, exclusive
	DarkTempDrop     = 2.0  // °C between evaluations, exclusive
	DarkHumidityRise = 5.0  // %RH between evaluations, exclusive
	CigaretteVOCMin  = 350  // exclusive lower bound
	HerbalVOCMin     = 600  // inclusive lower bound
	MovementMin      = 1.5  // g, exclusive
	TiltMin          = 30.0 // degrees, exclusive, either direction
)

// IsRain fires on saturated air.
func IsRain(s sensor.Snapshot) bool {
	return s.Valid() && s.Humidity > RainHumidity
}

// IsCold fires below 15 °C.
func IsCold(s sensor.Snapshot) bool {
	return s.Valid() && s.Temperature < ColdTemperature
}

// IsMovement fires when the acceleration norm exceeds 1.5 g.
func IsMovement(s sensor.Snapshot) bool {
	return s.Valid() && s.MovementMagnitude > MovementMin
}

// IsTilt fires when the badge leans more than 30° either way.
func IsTilt(s sensor.Snapshot) bool {
	return s.Valid() && math.Abs(s.TiltAngle) > TiltMin
}

// IsDarkTransition compares two consecutive readings. There is no light
// sensor on the badge, so darkness is inferred from the signature of moving
// into shade or shelter: a sudden temperature drop together with a humidity
// rise. It is a transient signal, not an absolute light level.
func IsDarkTransition(prevTemp, prevHumidity, temp, humidity float64) bool {
	return prevTemp-temp > DarkTempDrop && humidity-prevHumidity > DarkHumidityRise
}

// SmokeBand classifies a VOC index with the fixed threshold table:
// (350, 600) is cigarette smoke and [600, ∞) is herbal smoke.
func SmokeBand(voc uint32) Class {
	switch {
	case voc >= HerbalVOCMin:
		return ClassHerbal
	case voc > CigaretteVOCMin:
		return ClassCigarette
	default:
		return ClassNormal
	}
}

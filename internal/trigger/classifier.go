package trigger

import (
	"fmt"
	"strings"
)

// Class is a smoke classification outcome.
type Class uint8

const (
	ClassNormal Class = iota
	ClassCigarette
	ClassHerbal
	ClassOther
	ClassUnknown
)

func (c Class) String() string {
	switch c {
	case ClassNormal:
		return "Normal Air"
	case ClassCigarette:
		return "Cigarette Smoke"
	case ClassHerbal:
		return "Herbal Smoke"
	case ClassOther:
		return "Other Smoke"
	case ClassUnknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

// ParseClassLabel maps a training label ("normal", "cigarette", "herbal",
// "other") to a Class.
func ParseClassLabel(label string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "normal", "normal air", "clean":
		return ClassNormal, nil
	case "cigarette", "cigarette smoke":
		return ClassCigarette, nil
	case "herbal", "herbal smoke", "cannabis":
		return ClassHerbal, nil
	case "other", "other smoke":
		return ClassOther, nil
	}
	return ClassUnknown, fmt.Errorf("unknown class label %q", label)
}

func (c Class) MarshalText() ([]byte, error) {
	switch c {
	case ClassNormal:
		return []byte("normal"), nil
	case ClassCigarette:
		return []byte("cigarette"), nil
	case ClassHerbal:
		return []byte("herbal"), nil
	case ClassOther:
		return []byte("other"), nil
	case ClassUnknown:
		return []byte("unknown"), nil
	}
	return nil, fmt.Errorf("invalid class %d", uint8(c))
}

func (c *Class) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*c = ClassUnknown
		return nil
	}
	parsed, err := ParseClassLabel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Classification is a class with a confidence in [0,1].
type Classification struct {
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Classifier refines smoke detection from a VOC reading and its climate context.
type Classifier interface {
	Classify(voc uint32, temperature, humidity float64) (Classification, error)
}

// ModelInfo describes the classifier currently in use.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Loaded  bool   `json:"loaded"`
}

// ThresholdClassifier applies the fixed VOC table. It never fails and is
// always available as the fallback.
type ThresholdClassifier struct{}

var thresholdConfidence = map[Class]float64{
	ClassNormal:    0.9,
	ClassCigarette: 0.7,
	ClassHerbal:    0.6,
}

func (ThresholdClassifier) Classify(voc uint32, _, _ float64) (Classification, error) {
	class := SmokeBand(voc)
	return Classification{Class: class, Confidence: thresholdConfidence[class]}, nil
}

func (ThresholdClassifier) Info() ModelInfo {
	return ModelInfo{Name: "threshold", Version: "table-350-600", Loaded: true}
}

package trigger

import (
	"errors"
	"testing"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
)

type staticSource struct{ snap sensor.Snapshot }

func (s *staticSource) Snapshot() sensor.Snapshot { return s.snap }

type peers bool

func (p peers) IsPeerNearby() bool { return bool(p) }

type stubClassifier struct {
	c   Classification
	err error
}

func (s stubClassifier) Classify(uint32, float64, float64) (Classification, error) { return s.c, s.err }

func snap(env sensor.Environment, accel sensor.Vector3) sensor.Snapshot {
	return sensor.NewSnapshot(1, time.Unix(0, 0), env, sensor.Motion{Accel: accel})
}

func newEval(src SnapshotSource) *Evaluator {
	return NewEvaluator(src, nil, nil, 0.5, logger.Discard())
}

func TestSmokeBands(t *testing.T) {
	tests := []struct {
		voc           uint32
		wantCigarette bool
		wantHerbal    bool
	}{
		{0, false, false},
		{349, false, false},
		{350, false, false}, // exclusive lower bound
		{351, true, false},
		{599, true, false},
		{600, false, true}, // inclusive lower bound
		{601, false, true},
		{1000, false, true},
	}

	src := &staticSource{}
	e := newEval(src)
	for _, tt := range tests {
		src.snap = snap(sensor.Environment{Temperature: 20, Humidity: 50, VOC: tt.voc}, sensor.Vector3{Z: 1})
		if got := e.Evaluate(CigaretteSmoke); got != tt.wantCigarette {
			t.Errorf("voc=%d cigarette: got %v, want %v", tt.voc, got, tt.wantCigarette)
		}
		if got := e.Evaluate(HerbalSmoke); got != tt.wantHerbal {
			t.Errorf("voc=%d herbal: got %v, want %v", tt.voc, got, tt.wantHerbal)
		}
	}
}

func TestStatelessRules(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		env   sensor.Environment
		accel sensor.Vector3
		want  bool
	}{
		{"rain-above", Rain, sensor.Environment{Humidity: 85.1}, sensor.Vector3{Z: 1}, true},
		{"rain-boundary", Rain, sensor.Environment{Humidity: 85}, sensor.Vector3{Z: 1}, false},
		{"cold-below", Cold, sensor.Environment{Temperature: 14.9}, sensor.Vector3{Z: 1}, true},
		{"cold-boundary", Cold, sensor.Environment{Temperature: 15}, sensor.Vector3{Z: 1}, false},
		{"movement-shake", Movement, sensor.Environment{Temperature: 20}, sensor.Vector3{X: 1.2, Y: 0.5, Z: 1}, true},
		{"movement-rest", Movement, sensor.Environment{Temperature: 20}, sensor.Vector3{Z: 1}, false},
		{"tilt-forward", Tilt, sensor.Environment{Temperature: 20}, sensor.Vector3{Y: 1, Z: 1}, true},
		{"tilt-backward", Tilt, sensor.Environment{Temperature: 20}, sensor.Vector3{Y: -1, Z: 1}, true},
		{"tilt-flat", Tilt, sensor.Environment{Temperature: 20}, sensor.Vector3{Y: 0.1, Z: 1}, false},
		{"manual-never", Manual, sensor.Environment{Humidity: 99}, sensor.Vector3{X: 5}, false},
		{"none-never", None, sensor.Environment{Humidity: 99}, sensor.Vector3{X: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEval(&staticSource{snap: snap(tt.env, tt.accel)})
			if got := e.Evaluate(tt.kind); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoTriggersBeforeFirstSample(t *testing.T) {
	e := NewEvaluator(&staticSource{}, nil, nil, 0.5, logger.Discard())
	for _, k := range Kinds() {
		if k == Proximity {
			continue
		}
		if e.Evaluate(k) {
			t.Errorf("%s fired on an empty snapshot", k)
		}
	}
}

func TestDarkNeedsHistory(t *testing.T) {
	src := &staticSource{snap: snap(sensor.Environment{Temperature: 25, Humidity: 50}, sensor.Vector3{Z: 1})}
	e := newEval(src)

	// The first evaluation only seeds history, even for a "dark" reading.
	if e.Evaluate(Dark) {
		t.Fatal("first dark evaluation must be false")
	}

	src.snap = snap(sensor.Environment{Temperature: 22, Humidity: 56}, sensor.Vector3{Z: 1})
	if e.PeekDark(src.snap) != true {
		t.Error("peek should predict the transition")
	}
	if !e.Evaluate(Dark) {
		t.Fatal("3°C drop with 6% humidity rise should be dark")
	}

	// History advanced: the same reading again is no transition.
	if e.Evaluate(Dark) {
		t.Error("repeated reading must not fire")
	}
}

func TestDarkRequiresBothConditions(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		humidity float64
		want     bool
	}{
		{"drop-only", 22, 52, false},
		{"rise-only", 24.5, 60, false},
		{"exact-thresholds", 23, 55, false},
		{"both", 22.9, 55.1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &staticSource{snap: snap(sensor.Environment{Temperature: 25, Humidity: 50}, sensor.Vector3{Z: 1})}
			e := newEval(src)
			e.Evaluate(Dark)
			src.snap = snap(sensor.Environment{Temperature: tt.temp, Humidity: tt.humidity}, sensor.Vector3{Z: 1})
			if got := e.Evaluate(Dark); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProximityDelegatesToRadio(t *testing.T) {
	src := &staticSource{}
	if NewEvaluator(src, nil, nil, 0.5, logger.Discard()).Evaluate(Proximity) {
		t.Error("no radio must mean no proximity")
	}
	if !NewEvaluator(src, peers(true), nil, 0.5, logger.Discard()).Evaluate(Proximity) {
		t.Error("expected proximity from radio")
	}
}

func TestClassifierOverridesThresholds(t *testing.T) {
	// VOC 400 is cigarette by thresholds; a confident model says herbal.
	src := &staticSource{snap: snap(sensor.Environment{Temperature: 20, Humidity: 50, VOC: 400}, sensor.Vector3{Z: 1})}

	confident := NewEvaluator(src, nil, stubClassifier{c: Classification{Class: ClassHerbal, Confidence: 0.8}}, 0.5, logger.Discard())
	if !confident.Evaluate(HerbalSmoke) || confident.Evaluate(CigaretteSmoke) {
		t.Error("confident model result should replace the threshold band")
	}

	unsure := NewEvaluator(src, nil, stubClassifier{c: Classification{Class: ClassHerbal, Confidence: 0.2}}, 0.5, logger.Discard())
	if !unsure.Evaluate(CigaretteSmoke) {
		t.Error("low confidence result should defer to thresholds")
	}

	broken := NewEvaluator(src, nil, stubClassifier{err: errors.New("model not loaded")}, 0.5, logger.Discard())
	if !broken.Evaluate(CigaretteSmoke) {
		t.Error("failing classifier should defer to thresholds")
	}
}

func TestReportDoesNotAdvanceDark(t *testing.T) {
	src := &staticSource{snap: snap(sensor.Environment{Temperature: 25, Humidity: 50}, sensor.Vector3{Z: 1})}
	e := newEval(src)
	e.Evaluate(Dark)

	next := snap(sensor.Environment{Temperature: 21, Humidity: 60}, sensor.Vector3{Z: 1})
	for i := 0; i < 3; i++ {
		if !e.Report(next)[Dark] {
			t.Fatal("report should show the pending transition")
		}
	}
	src.snap = next
	if !e.Evaluate(Dark) {
		t.Error("report must not consume the dark transition")
	}
}

func TestKindText(t *testing.T) {
	for _, k := range append(Kinds(), None) {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Errorf("%s did not survive text round trip: %v %v", k, back, err)
		}
	}
	if _, err := ParseKind("sunshine"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if Kind(42).Valid() {
		t.Error("kind 42 must be invalid")
	}
}

func TestDetectorMethods(t *testing.T) {
	src := &staticSource{}
	e := newEval(src)

	detectors := []struct {
		name string
		fn   func() bool
	}{
		{"rain", e.IsRainDetected},
		{"cold", e.IsColdDetected},
		{"dark", e.IsDarkDetected},
		{"cigarette", e.IsCigaretteDetected},
		{"herbal", e.IsHerbalDetected},
		{"movement", e.IsMovementDetected},
		{"tilt", e.IsTiltDetected},
	}

	steps := []struct {
		name  string
		env   sensor.Environment
		accel sensor.Vector3
		want  map[string]bool
	}{
		{
			name:  "calm",
			env:   sensor.Environment{Temperature: 20, Humidity: 50, VOC: 100},
			accel: sensor.Vector3{Z: 1},
			want:  map[string]bool{},
		},
		{
			name:  "cold wet smoky shake",
			env:   sensor.Environment{Temperature: 14, Humidity: 86, VOC: 700},
			accel: sensor.Vector3{X: 1.2, Y: 1, Z: 1},
			want:  map[string]bool{"rain": true, "cold": true, "dark": true, "herbal": true, "movement": true, "tilt": true},
		},
		{
			name:  "cigarette after the drop",
			env:   sensor.Environment{Temperature: 14, Humidity: 86, VOC: 400},
			accel: sensor.Vector3{Z: 1},
			want:  map[string]bool{"rain": true, "cold": true, "cigarette": true},
		},
	}

	for _, step := range steps {
		src.snap = snap(step.env, step.accel)
		for _, d := range detectors {
			if got := d.fn(); got != step.want[d.name] {
				t.Errorf("%s: %s got %v, want %v", step.name, d.name, got, step.want[d.name])
			}
		}
	}
}

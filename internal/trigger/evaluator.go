package trigger

import (
	"sync"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
)

// SnapshotSource provides the latest sensor snapshot.
type SnapshotSource interface {
	Snapshot() sensor.Snapshot
}

// PeerDetector reports whether another badge is in radio range.
type PeerDetector interface {
	IsPeerNearby() bool
}

// Evaluator answers trigger questions against the latest snapshot. Every
// rule is a pure function of the snapshot except Dark, which keeps the
// previous temperature and humidity between evaluations.
type Evaluator struct {
	source        SnapshotSource
	peers         PeerDetector
	classifier    Classifier
	minConfidence float64
	logger        *logger.Logger

	mu         sync.Mutex
	darkSeeded bool
	prevTemp   float64
	prevHum    float64
}

// NewEvaluator creates an evaluator. peers may be nil (Proximity never
// fires). classifier may be nil, in which case the threshold table is used.
// Model results below minConfidence defer to the threshold table.
func NewEvaluator(source SnapshotSource, peers PeerDetector, classifier Classifier, minConfidence float64, log *logger.Logger) *Evaluator {
	if classifier == nil {
		classifier = ThresholdClassifier{}
	}
	return &Evaluator{
		source:        source,
		peers:         peers,
		classifier:    classifier,
		minConfidence: minConfidence,
		logger:        log,
	}
}

// Evaluate checks a trigger against the current snapshot.
func (e *Evaluator) Evaluate(k Kind) bool {
	return e.EvaluateSnapshot(k, e.source.Snapshot())
}

// EvaluateSnapshot checks a trigger against s.
func (e *Evaluator) EvaluateSnapshot(k Kind, s sensor.Snapshot) bool {
	switch k {
	case Rain:
		return IsRain(s)
	case Cold:
		return IsCold(s)
	case Dark:
		return e.dark(s)
	case CigaretteSmoke:
		return s.Valid() && e.ClassifySmoke(s).Class == ClassCigarette
	case HerbalSmoke:
		return s.Valid() && e.ClassifySmoke(s).Class == ClassHerbal
	case Movement:
		return IsMovement(s)
	case Tilt:
		return IsTilt(s)
	case Proximity:
		return e.peers != nil && e.peers.IsPeerNearby()
	default:
		// Manual is completed through the engine, never by sensor data.
		return false
	}
}

// The first valid evaluation seeds the history and reports false.
func (e *Evaluator) dark(s sensor.Snapshot) bool {
	if !s.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.darkSeeded {
		e.prevTemp, e.prevHum = s.Temperature, s.Humidity
		e.darkSeeded = true
		return false
	}
	fired := IsDarkTransition(e.prevTemp, e.prevHum, s.Temperature, s.Humidity)
	e.prevTemp, e.prevHum = s.Temperature, s.Humidity
	return fired
}

// PeekDark reports what the Dark rule would return for s without advancing
// its history.
func (e *Evaluator) PeekDark(s sensor.Snapshot) bool {
	if !s.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.darkSeeded && IsDarkTransition(e.prevTemp, e.prevHum, s.Temperature, s.Humidity)
}

// ClassifySmoke runs the configured classifier, falling back to the
// threshold table when it fails or is not confident enough.
func (e *Evaluator) ClassifySmoke(s sensor.Snapshot) Classification {
	c, err := e.classifier.Classify(s.VOC, s.Temperature, s.Humidity)
	if err == nil && c.Confidence >= e.minConfidence {
		return c
	}
	if err != nil {
		e.logger.Debug("classifier failed, using threshold fallback: %v", err)
	}
	fallback, _ := ThresholdClassifier{}.Classify(s.VOC, s.Temperature, s.Humidity)
	return fallback
}

// ClassifierInfo describes the classifier in use.
func (e *Evaluator) ClassifierInfo() ModelInfo {
	if info, ok := e.classifier.(interface{ Info() ModelInfo }); ok {
		return info.Info()
	}
	return ModelInfo{Name: "custom", Loaded: true}
}

// Report evaluates every trigger for s without side effects.
func (e *Evaluator) Report(s sensor.Snapshot) map[Kind]bool {
	out := make(map[Kind]bool, len(Kinds()))
	for _, k := range Kinds() {
		if k == Dark {
			out[k] = e.PeekDark(s)
			continue
		}
		out[k] = e.EvaluateSnapshot(k, s)
	}
	return out
}

func (e *Evaluator) IsRainDetected() bool      { return e.Evaluate(Rain) }
func (e *Evaluator) IsColdDetected() bool      { return e.Evaluate(Cold) }
func (e *Evaluator) IsDarkDetected() bool      { return e.Evaluate(Dark) }
func (e *Evaluator) IsCigaretteDetected() bool { return e.Evaluate(CigaretteSmoke) }
func (e *Evaluator) IsHerbalDetected() bool    { return e.Evaluate(HerbalSmoke) }
func (e *Evaluator) IsMovementDetected() bool  { return e.Evaluate(Movement) }
func (e *Evaluator) IsTiltDetected() bool      { return e.Evaluate(Tilt) }

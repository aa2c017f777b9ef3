package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
)

// DefaultPeriod is how often the sensors are read.
const DefaultPeriod = 100 * time.Millisecond

// DefaultLogCapacity bounds the in-memory VOC training log.
const DefaultLogCapacity = 1000

// SamplerConfig tunes a Sampler. Zero fields take defaults.
type SamplerConfig struct {
	Period      time.Duration
	LogCapacity int
	Now         func() time.Time
}

// Sampler reads both sensors every period and atomically replaces the
// current Snapshot. Readers never block on the next sample.
type Sampler struct {
	env     EnvironmentSensor
	motion  MotionSensor
	period  time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Collector

	sampleMu sync.Mutex // single writer
	seq      uint64
	current  atomic.Pointer[Snapshot]

	logMu   sync.Mutex
	logging bool
	label   string
	ring    *vocRing
}

// NewSampler creates a sampler over the two sensor sources.
func NewSampler(env EnvironmentSensor, motion MotionSensor, cfg SamplerConfig, log *logger.Logger, m *metrics.Collector) *Sampler {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = DefaultLogCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Sampler{
		env:     env,
		motion:  motion,
		period:  cfg.Period,
		now:     cfg.Now,
		logger:  log,
		metrics: m,
		ring:    newVOCRing(cfg.LogCapacity),
	}
	s.current.Store(&Snapshot{})
	return s
}

// Run samples immediately and then once per period until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("Sensor sampler started (period %s)", s.period)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.SampleOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sensor sampler stopped.")
			return nil
		case <-ticker.C:
			s.SampleOnce(ctx)
		}
	}
}

// SampleOnce performs a single sampling tick. If either sensor fails the
// previous snapshot is kept as a whole and the error is returned for
// observability only.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	env, err := s.env.ReadEnvironment(ctx)
	if err != nil {
		return s.failed("environment", err)
	}
	motion, err := s.motion.ReadMotion(ctx)
	if err != nil {
		return s.failed("motion", err)
	}

	s.seq++
	snap := NewSnapshot(s.seq, s.now(), env, motion)
	s.current.Store(&snap)
	s.metrics.RecordSample(nil)

	s.logger.Debug("T=%.1f°C H=%.1f%% P=%.1fhPa VOC=%d Movement=%.2f Tilt=%.1f°",
		snap.Temperature, snap.Humidity, snap.Pressure, snap.VOC, snap.MovementMagnitude, snap.TiltAngle)

	s.appendLog(snap)
	return nil
}

func (s *Sampler) failed(source string, err error) error {
	s.metrics.RecordSample(err)
	if !errors.Is(err, context.Canceled) {
		s.logger.Debug("%s read failed, keeping previous snapshot: %v", source, err)
	}
	return fmt.Errorf("read %s: %w", source, err)
}

// Snapshot returns the most recent completed snapshot.
func (s *Sampler) Snapshot() Snapshot {
	return *s.current.Load()
}

// StartLogging begins appending every new sample to the VOC log under label.
func (s *Sampler) StartLogging(label string) error {
	if label == "" {
		return fmt.Errorf("voc logging label must not be empty")
	}
	label = truncateLabel(label, MaxLabelLen)
	s.logMu.Lock()
	s.logging = true
	s.label = label
	s.logMu.Unlock()

	s.logger.Info("Started VOC logging with label: %s", label)
	return nil
}

// StopLogging stops appending samples and returns how many are buffered.
func (s *Sampler) StopLogging() int {
	s.logMu.Lock()
	s.logging = false
	n := s.ring.len()
	s.logMu.Unlock()

	s.logger.Info("Stopped VOC logging. Collected %d samples", n)
	return n
}

// LoggingStatus reports whether logging is active, its label and the
// number of buffered samples.
func (s *Sampler) LoggingStatus() (active bool, label string, samples int) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return s.logging, s.label, s.ring.len()
}

func (s *Sampler) appendLog(snap Snapshot) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if !s.logging {
		return
	}
	s.ring.push(VOCSample{
		Timestamp:   snap.SampledAt,
		VOC:         snap.VOC,
		Temperature: snap.Temperature,
		Humidity:    snap.Humidity,
		Label:       s.label,
	})
}

// ExportLog writes the buffered samples as CSV and clears the buffer.
// Returns ErrNoSamples when nothing was collected.
func (s *Sampler) ExportLog(w io.Writer) (int, error) {
	s.logMu.Lock()
	if s.ring.len() == 0 {
		s.logMu.Unlock()
		return 0, ErrNoSamples
	}
	samples := s.ring.drain()
	s.logMu.Unlock()

	if err := WriteCSV(w, samples); err != nil {
		return 0, err
	}
	s.logger.Info("Exported %d VOC samples", len(samples))
	return len(samples), nil
}

// ExportLogFile writes the buffered samples to path.
func (s *Sampler) ExportLogFile(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("export path must not be empty")
	}
	if _, _, n := s.LoggingStatus(); n == 0 {
		return 0, ErrNoSamples
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	n, err := s.ExportLog(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close export file: %w", cerr)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

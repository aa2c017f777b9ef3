package engine

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// AirQuality names the VOC band of a reading.
func AirQuality(voc uint32) string {
	switch {
	case voc < trigger.CigaretteVOCMin:
		return "NORMAL"
	case voc < trigger.HerbalVOCMin:
		return "CIGARETTE SMOKE DETECTED"
	default:
		return "HERBAL SMOKE DETECTED"
	}
}

// DebugReport is a point-in-time dump of everything the badge knows.
type DebugReport struct {
	Snapshot   sensor.Snapshot
	AirQuality string
	Detections map[trigger.Kind]bool
	Smoke      trigger.Classification
	Player     quest.PlayerState
	Peers      int
	HeapAlloc  uint64
	Goroutines int
}

// DebugReport collects a report without disturbing trigger state.
func (g *Game) DebugReport() DebugReport {
	snap := g.sampler.Snapshot()
	r := DebugReport{
		Snapshot:   snap,
		AirQuality: AirQuality(snap.VOC),
		Detections: g.triggers.Report(snap),
		Smoke:      g.triggers.ClassifySmoke(snap),
		Goroutines: runtime.NumGoroutine(),
	}
	r.Player, _ = g.quests.PlayerState()
	if g.radio != nil {
		r.Peers = len(g.radio.Peers())
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	r.HeapAlloc = mem.HeapAlloc
	return r
}

// LogDebugReport writes a report at Debug level.
func (g *Game) LogDebugReport() {
	if !g.logger.DebugEnabled() {
		return
	}
	r := g.DebugReport()
	s := r.Snapshot
	g.logger.Debug("=== Sensor Data === T=%.1f°C H=%.1f%% P=%.1fhPa VOC=%d Movement=%.2f Tilt=%.1f°",
		s.Temperature, s.Humidity, s.Pressure, s.VOC, s.MovementMagnitude, s.TiltAngle)
	g.logger.Debug("=== Air Quality === %s (%s, confidence %.2f)", r.AirQuality, r.Smoke.Class, r.Smoke.Confidence)

	var detections []string
	for _, k := range trigger.Kinds() {
		if fired, ok := r.Detections[k]; ok {
			mark := "NO"
			if fired {
				mark = "YES"
			}
			detections = append(detections, k.String()+"="+mark)
		}
	}
	g.logger.Debug("=== Detection Status === %s", strings.Join(detections, " "))

	g.logger.Debug("=== Quest State === active=%d completed=%d score=%d peers=%d",
		r.Player.ActiveCount(), r.Player.CompletedCount, r.Player.TotalScore, r.Peers)
	for _, q := range r.Player.Quests {
		g.logger.Debug("Quest %d: %s - %s (%d/%d)", q.QuestID, q.Name, q.Status, q.Progress, q.Target)
	}
	g.logger.Debug("=== Runtime === heap=%d bytes goroutines=%d", r.HeapAlloc, r.Goroutines)
}

func (g *Game) runDebug(ctx context.Context) error {
	ticker := time.NewTicker(g.opts.DebugInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.LogDebugReport()
		}
	}
}

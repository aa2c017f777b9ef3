package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

func TestAirQuality(t *testing.T) {
	tests := []struct {
		voc  uint32
		want string
	}{
		{0, "NORMAL"},
		{349, "NORMAL"},
		{350, "CIGARETTE SMOKE DETECTED"},
		{599, "CIGARETTE SMOKE DETECTED"},
		{600, "HERBAL SMOKE DETECTED"},
		{1000, "HERBAL SMOKE DETECTED"},
	}
	for _, tt := range tests {
		if got := AirQuality(tt.voc); got != tt.want {
			t.Errorf("AirQuality(%d) = %q, want %q", tt.voc, got, tt.want)
		}
	}
}

func TestDebugReport(t *testing.T) {
	r := newRig(t, Options{})
	ctx := context.Background()
	r.env.Set(sensor.Environment{Temperature: 5, Humidity: 40, Pressure: 1000, VOC: 450})
	if err := r.sampler.SampleOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.game.Activate(ctx, 1); err != nil {
		t.Fatal(err)
	}

	rep := r.game.DebugReport()
	if rep.AirQuality != "CIGARETTE SMOKE DETECTED" {
		t.Errorf("air quality = %q", rep.AirQuality)
	}
	if !rep.Detections[trigger.Cold] || rep.Detections[trigger.Rain] {
		t.Errorf("detections = %v", rep.Detections)
	}
	if rep.Smoke.Class != trigger.ClassCigarette {
		t.Errorf("smoke = %+v", rep.Smoke)
	}
	if len(rep.Player.Quests) != 1 || rep.Goroutines == 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestLogDebugReportGatedByDebug(t *testing.T) {
	r := newRig(t, Options{})
	var buf bytes.Buffer
	r.game.logger = logger.NewWithWriter(&buf)

	r.game.LogDebugReport()
	if buf.Len() != 0 {
		t.Fatalf("report logged with debug off: %q", buf.String())
	}

	r.game.logger.SetDebug(true)
	r.game.LogDebugReport()
	for _, want := range []string{"=== Sensor Data ===", "=== Air Quality ===", "=== Detection Status ===", "movement=NO", "=== Quest State ==="} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q", want)
		}
	}
}

package metrics

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordSample(nil)
	c.RecordTick(time.Millisecond)
	c.RecordTrigger("rain")
	c.RecordStateWrite(time.Millisecond, errors.New("boom"))
	if c.TriggersFired() != nil {
		t.Error("expected nil trigger map from nil collector")
	}
}

func TestSnapshotCounts(t *testing.T) {
	c := New()
	c.RecordSample(nil)
	c.RecordSample(errors.New("i2c timeout"))
	c.RecordTick(2 * time.Millisecond)
	c.RecordTrigger("movement")
	c.RecordTrigger("movement")
	c.RecordCompletion()

	snap := c.Snapshot()
	sampler := snap["sampler"].(map[string]interface{})
	if sampler["samples"].(int64) != 2 || sampler["failures"].(int64) != 1 {
		t.Errorf("unexpected sampler metrics: %v", sampler)
	}
	quests := snap["quests"].(map[string]interface{})
	if quests["completed"].(int64) != 1 {
		t.Errorf("expected 1 completion, got %v", quests["completed"])
	}
	if fired := quests["triggers_fired"].(map[string]int64); fired["movement"] != 2 {
		t.Errorf("expected 2 movement triggers, got %v", fired)
	}
}

func TestHandlers(t *testing.T) {
	c := New()
	c.RecordTrigger("tilt")

	rec := httptest.NewRecorder()
	Handler(c)(rec, httptest.NewRequest("GET", "/metrics", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := body["tick"]; !ok {
		t.Error("expected tick section")
	}

	rec = httptest.NewRecorder()
	PrometheusHandler(c)(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))
	if !strings.Contains(rec.Body.String(), `badge_triggers_fired_total{kind="tilt"} 1`) {
		t.Errorf("missing trigger line in:\n%s", rec.Body.String())
	}
}

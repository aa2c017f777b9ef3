// Package metrics provides observability for the badge runtime.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers runtime counters. All methods are safe on a nil receiver.
type Collector struct {
	// Sampler metrics
	SamplesTaken   int64
	SampleFailures int64

	// Game loop metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Quest metrics
	QuestsActivated int64
	QuestsCompleted int64
	triggersFired   map[string]int64

	// Persistence metrics
	StateWrites      int64
	StateWriteLatSum int64
	StateWriteLatMax int64
	StateWriteErrors int64

	// Radio metrics
	PresenceBroadcasts int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSDropped           int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{
		StartTime:     time.Now(),
		triggersFired: make(map[string]int64),
	}
}

// RecordSample records one sampler tick.
func (c *Collector) RecordSample(err error) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.SamplesTaken, 1)
	if err != nil {
		atomic.AddInt64(&c.SampleFailures, 1)
	}
}

// RecordTick records a game loop cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordTrigger counts a trigger that advanced quest progress.
func (c *Collector) RecordTrigger(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.triggersFired[kind]++
	c.mu.Unlock()
}

// RecordActivation counts a quest activation.
func (c *Collector) RecordActivation() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.QuestsActivated, 1)
}

// RecordCompletion counts a quest completion.
func (c *Collector) RecordCompletion() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.QuestsCompleted, 1)
}

// RecordStateWrite records a player state save.
func (c *Collector) RecordStateWrite(latency time.Duration, err error) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.StateWrites, 1)
	atomic.AddInt64(&c.StateWriteLatSum, int64(latency))
	storeMax(&c.StateWriteLatMax, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.StateWriteErrors, 1)
	}
}

// RecordPresence counts a presence broadcast that actually went out.
func (c *Collector) RecordPresence() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.PresenceBroadcasts, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outgoing WebSocket message, or a drop when the
// client buffer was full.
func (c *Collector) RecordWSMessage(dropped bool) {
	if c == nil {
		return
	}
	if dropped {
		atomic.AddInt64(&c.WSDropped, 1)
		return
	}
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// TriggersFired returns a copy of the per-kind trigger counters.
func (c *Collector) TriggersFired() map[string]int64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.triggersFired))
	for k, v := range c.triggersFired {
		out[k] = v
	}
	return out
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTick := c.LastTickTime
	c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	writes := atomic.LoadInt64(&c.StateWrites)

	var tickAvg, writeAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if writes > 0 {
		writeAvg = float64(atomic.LoadInt64(&c.StateWriteLatSum)) / float64(writes) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"sampler": map[string]interface{}{
			"samples":  atomic.LoadInt64(&c.SamplesTaken),
			"failures": atomic.LoadInt64(&c.SampleFailures),
		},

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      lastTick.Format(time.RFC3339),
		},

		"quests": map[string]interface{}{
			"activated":      atomic.LoadInt64(&c.QuestsActivated),
			"completed":      atomic.LoadInt64(&c.QuestsCompleted),
			"triggers_fired": c.TriggersFired(),
		},

		"persistence": map[string]interface{}{
			"writes":           writes,
			"avg_write_lat_ms": writeAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.StateWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.StateWriteErrors),
		},

		"radio": map[string]interface{}{
			"presence_broadcasts": atomic.LoadInt64(&c.PresenceBroadcasts),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"dropped":            atomic.LoadInt64(&c.WSDropped),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(c *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func PrometheusHandler(c *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("badge_samples_total", "Total sampler ticks", atomic.LoadInt64(&c.SamplesTaken))
		counter("badge_sample_failures_total", "Sampler ticks that kept the previous snapshot", atomic.LoadInt64(&c.SampleFailures))
		counter("badge_ticks_total", "Total game loop ticks", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP badge_tick_latency_max_ms Maximum game tick latency\n")
		fmt.Fprintf(w, "# TYPE badge_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "badge_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter("badge_quests_activated_total", "Quests activated", atomic.LoadInt64(&c.QuestsActivated))
		counter("badge_quests_completed_total", "Quests completed", atomic.LoadInt64(&c.QuestsCompleted))
		counter("badge_state_writes_total", "Player state saves", atomic.LoadInt64(&c.StateWrites))
		counter("badge_state_write_errors_total", "Failed player state saves", atomic.LoadInt64(&c.StateWriteErrors))
		counter("badge_presence_broadcasts_total", "Presence broadcasts sent", atomic.LoadInt64(&c.PresenceBroadcasts))

		fmt.Fprintf(w, "# HELP badge_triggers_fired_total Triggers that advanced quest progress\n")
		fmt.Fprintf(w, "# TYPE badge_triggers_fired_total counter\n")
		fired := c.TriggersFired()
		kinds := make([]string, 0, len(fired))
		for k := range fired {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "badge_triggers_fired_total{kind=%q} %d\n", k, fired[k])
		}
		fmt.Fprintln(w)

		fmt.Fprintf(w, "# HELP badge_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE badge_ws_connections gauge\n")
		fmt.Fprintf(w, "badge_ws_connections %d\n", atomic.LoadInt64(&c.WSConnectionsActive))
	}
}

// storeMax is not atomic as a whole, which is acceptable for metrics.
func storeMax(addr *int64, v int64) {
	if v > atomic.LoadInt64(addr) {
		atomic.StoreInt64(addr, v)
	}
}

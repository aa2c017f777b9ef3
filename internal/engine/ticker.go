package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
)

// DefaultTickPeriod is the game loop period.
const DefaultTickPeriod = 100 * time.Millisecond

// Ticker manages the game loop heartbeat.
// It does NOT know about quests or sensors, only time progression.
type Ticker struct {
	period     time.Duration
	tick       func(ctx context.Context) error
	logger     *logger.Logger
	tickNumber atomic.Int64
	stopChan   chan struct{}
	stopped    atomic.Bool
}

// NewTicker creates a loop calling tick once per period.
func NewTicker(period time.Duration, tick func(ctx context.Context) error, log *logger.Logger) *Ticker {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Ticker{
		period:   period,
		tick:     tick,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start runs the loop until ctx is done or Stop is called. A failing tick
// is logged and the loop carries on; the next tick retries.
func (t *Ticker) Start(ctx context.Context) error {
	t.logger.Info("Game loop started (period %s)", t.period)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Game loop stopped by context.")
			return nil
		case <-t.stopChan:
			t.logger.Info("Game loop stopped manually.")
			return nil
		case <-ticker.C:
			n := t.tickNumber.Add(1)
			if err := t.tick(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error("Tick %d failed: %v", n, err)
			}
		}
	}
}

// Stop gracefully stops the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		close(t.stopChan)
	}
}

// Ticks returns the number of ticks run so far.
func (t *Ticker) Ticks() int64 {
	return t.tickNumber.Load()
}

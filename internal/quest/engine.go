package quest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// TriggerSource evaluates one trigger against the current sensor state.
type TriggerSource interface {
	Evaluate(k trigger.Kind) bool
}

// Options holds the engine's optional collaborators.
type Options struct {
	Catalog *Catalog // defaults to DefaultCatalog()
	Events  *events.EventLog
	Metrics *metrics.Collector
	Logger  *logger.Logger
	BadgeID string
	Now     func() time.Time
}

// Engine owns the player state. Every mutation runs under one lock and is
// saved before it becomes visible, so the in-memory state always equals the
// last successful save.
type Engine struct {
	mu          sync.Mutex
	catalog     *Catalog
	store       Store
	triggers    TriggerSource
	state       PlayerState
	initialized bool

	events  *events.EventLog
	metrics *metrics.Collector
	logger  *logger.Logger
	badgeID string
	now     func() time.Time
}

// NewEngine creates an engine. Init must be called before use.
func NewEngine(store Store, triggers TriggerSource, opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		catalog:  opts.Catalog,
		store:    store,
		triggers: triggers,
		events:   opts.Events,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		badgeID:  opts.BadgeID,
		now:      opts.Now,
	}
}

// Init loads the player state. A missing record yields the zero state.
// Calling Init again is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	state, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		state = PlayerState{}
		e.logger.Info("No saved player state, starting fresh")
	case err != nil:
		return err
	}
	e.state = state
	e.initialized = true
	e.logger.Info("Quest engine ready: %d definitions, %d quests, score %d",
		e.catalog.Len(), len(state.Quests), state.TotalScore)
	return nil
}

func (e *Engine) ready() error {
	if !e.initialized {
		return fmt.Errorf("%w: quest engine not initialised", ErrInvalidState)
	}
	return nil
}

// commit saves next and, on success, makes it the current state.
func (e *Engine) commit(ctx context.Context, next PlayerState) error {
	start := time.Now()
	err := e.store.Save(ctx, next)
	e.metrics.RecordStateWrite(time.Since(start), err)
	if err != nil {
		e.logger.Error("Saving player state failed: %v", err)
		return err
	}
	e.state = next
	return nil
}

func (e *Engine) completionTime() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// Update runs one game tick. Each active instance whose trigger fires gains
// exactly one progress step, in activation order; an instance that reaches
// its target completes. Each trigger kind is evaluated at most once per
// tick. It returns the instances completed by this tick.
func (e *Engine) Update(ctx context.Context) ([]Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return nil, err
	}

	next := e.state.Clone()
	fired := make(map[trigger.Kind]bool)
	var advanced, completed []Instance
	for i := range next.Quests {
		q := &next.Quests[i]
		if q.Status != StatusActive {
			continue
		}
		hit, seen := fired[q.Trigger]
		if !seen {
			hit = e.triggers.Evaluate(q.Trigger)
			fired[q.Trigger] = hit
			if hit {
				e.metrics.RecordTrigger(q.Trigger.String())
			}
		}
		if !hit {
			continue
		}

		q.Progress++
		if q.Progress >= q.Target {
			next.complete(i, e.completionTime())
			completed = append(completed, *q)
		} else {
			advanced = append(advanced, *q)
		}
	}

	if len(advanced) == 0 && len(completed) == 0 {
		return nil, nil
	}
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	for _, q := range advanced {
		e.logger.Debug("Quest '%s' progress: %d/%d", q.Name, q.Progress, q.Target)
		e.record(events.EventTypeQuestProgress, q.QuestID, map[string]any{
			"progress": q.Progress,
			"target":   q.Target,
		})
	}
	for _, q := range completed {
		e.onCompleted(q)
	}
	return completed, nil
}

// Activate copies a catalog definition into a new active instance.
func (e *Engine) Activate(ctx context.Context, questID int) (Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return Instance{}, err
	}
	def, err := e.catalog.Get(questID)
	if err != nil {
		return Instance{}, err
	}
	if len(e.state.Quests) >= MaxPlayerQuests {
		return Instance{}, fmt.Errorf("%w: player already holds %d quests", ErrResourceExhausted, MaxPlayerQuests)
	}
	if i := e.state.indexOf(questID); i >= 0 {
		return Instance{}, fmt.Errorf("%w: quest %d is already %s", ErrInvalidState, questID, e.state.Quests[i].Status)
	}

	next := e.state.Clone()
	inst := newInstance(def)
	next.Quests = append(next.Quests, inst)
	if err := e.commit(ctx, next); err != nil {
		return Instance{}, err
	}

	e.metrics.RecordActivation()
	e.logger.Info("Activated quest: %s", inst.Name)
	e.record(events.EventTypeQuestActivated, questID, map[string]any{
		"name":    inst.Name,
		"trigger": inst.Trigger.String(),
		"target":  inst.Target,
	})
	return inst, nil
}

// Complete finishes an active instance without waiting for its trigger.
func (e *Engine) Complete(ctx context.Context, questID int) (Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return Instance{}, err
	}
	i := e.state.indexOf(questID)
	if i < 0 || e.state.Quests[i].Status != StatusActive {
		return Instance{}, fmt.Errorf("%w: no active quest with id %d", ErrNotFound, questID)
	}

	next := e.state.Clone()
	next.complete(i, e.completionTime())
	if err := e.commit(ctx, next); err != nil {
		return Instance{}, err
	}
	inst := next.Quests[i]
	e.onCompleted(inst)
	return inst, nil
}

func (e *Engine) onCompleted(q Instance) {
	e.metrics.RecordCompletion()
	e.logger.Info("Quest completed: %s", q.Name)
	e.record(events.EventTypeQuestCompleted, q.QuestID, map[string]any{
		"name":  q.Name,
		"award": CompletionAward,
	})
}

// Instance returns the player's instance for a quest.
func (e *Engine) Instance(questID int) (Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return Instance{}, err
	}
	i := e.state.indexOf(questID)
	if i < 0 {
		return Instance{}, fmt.Errorf("%w: quest %d not taken", ErrNotFound, questID)
	}
	return e.state.Quests[i], nil
}

// PlayerState returns a copy of the current state.
func (e *Engine) PlayerState() (PlayerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return PlayerState{}, err
	}
	return e.state.Clone(), nil
}

// AddDefinition appends a custom quest to the catalog.
func (e *Engine) AddDefinition(name, description string, kind trigger.Kind, target uint32) (Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.catalog.Add(name, description, kind, target)
	if err != nil {
		return Definition{}, err
	}
	e.logger.Info("Added quest: %s", d.Name)
	e.record(events.EventTypeCatalogExtended, d.ID, map[string]any{
		"name":    d.Name,
		"trigger": d.Trigger.String(),
		"target":  d.Target,
	})
	return d, nil
}

// Catalog lists every quest definition.
func (e *Engine) Catalog() []Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.List()
}

// Reset wipes the player's progress and persists the zero state.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(); err != nil {
		return err
	}
	if err := e.commit(ctx, PlayerState{}); err != nil {
		return err
	}
	e.logger.Warn("Player state cleared")
	e.record(events.EventTypePlayerReset, 0, nil)
	return nil
}

func (e *Engine) record(t events.EventType, questID int, payload map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Append(events.Event{
		Type:      t,
		BadgeID:   e.badgeID,
		QuestID:   questID,
		Payload:   payload,
		Timestamp: e.now().UTC(),
	})
}

package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/radio"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// WelcomeMessage is shown once the player state has loaded.
const WelcomeMessage = "Welcome to the WHY2025 Scavenger Sensory Hunt!"

// Display is the badge screen.
type Display interface {
	ShowStatus(status string)
	ShowQuestList(quests []quest.Instance)
}

type noDisplay struct{}

func (noDisplay) ShowStatus(string)               {}
func (noDisplay) ShowQuestList([]quest.Instance) {}

// Components are the collaborators a Game composes. Radio and Display may
// be nil.
type Components struct {
	Sampler  *sensor.Sampler
	Triggers *trigger.Evaluator
	Quests   *quest.Engine
	Radio    *radio.Manager
	Display  Display
}

// Options tunes the loops started by Run.
type Options struct {
	TickPeriod    time.Duration // game loop; defaults to DefaultTickPeriod
	RadioTick     time.Duration // presence check cadence; defaults to 1s
	Debug         bool          // periodic debug reports
	DebugInterval time.Duration // defaults to 10s
}

// Game is the central orchestrator: the one owner of every component, with
// no package-level state.
type Game struct {
	sampler  *sensor.Sampler
	triggers *trigger.Evaluator
	quests   *quest.Engine
	radio    *radio.Manager
	display  Display
	ticker   *Ticker

	opts    Options
	logger  *logger.Logger
	metrics *metrics.Collector

	mu    sync.Mutex
	shown []quest.Instance // last quest list sent to the display
}

// NewGame wires the components together.
func NewGame(c Components, opts Options, log *logger.Logger, m *metrics.Collector) *Game {
	if c.Display == nil {
		c.Display = noDisplay{}
	}
	if opts.RadioTick <= 0 {
		opts.RadioTick = time.Second
	}
	if opts.DebugInterval <= 0 {
		opts.DebugInterval = 10 * time.Second
	}
	g := &Game{
		sampler:  c.Sampler,
		triggers: c.Triggers,
		quests:   c.Quests,
		radio:    c.Radio,
		display:  c.Display,
		opts:     opts,
		logger:   log,
		metrics:  m,
	}
	g.ticker = NewTicker(opts.TickPeriod, g.Tick, log)
	return g
}

// Boot loads the player state and greets the player.
func (g *Game) Boot(ctx context.Context) error {
	if err := g.quests.Init(ctx); err != nil {
		return fmt.Errorf("load player state: %w", err)
	}
	g.display.ShowStatus(WelcomeMessage)
	g.refresh(true)
	return nil
}

// Run starts the sampler, the game loop, the radio and, when enabled, the
// debug reporter, and blocks until ctx is cancelled or one of them fails.
// Boot must have succeeded first.
func (g *Game) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.sampler.Run(ctx) })
	eg.Go(func() error { return g.ticker.Start(ctx) })
	if g.radio != nil {
		eg.Go(func() error { return g.radio.Run(ctx, g.opts.RadioTick) })
	}
	if g.opts.Debug {
		eg.Go(func() error { return g.runDebug(ctx) })
	}
	g.logger.Info("Game running.")
	return eg.Wait()
}

// Stop ends the game loop; the other loops follow ctx.
func (g *Game) Stop() {
	g.ticker.Stop()
}

// Tick runs one game loop iteration.
func (g *Game) Tick(ctx context.Context) error {
	start := time.Now()
	completed, err := g.quests.Update(ctx)
	g.metrics.RecordTick(time.Since(start))
	if err != nil {
		return err
	}
	for _, q := range completed {
		g.display.ShowStatus(completedStatus(q))
	}
	g.refresh(false)
	return nil
}

func completedStatus(q quest.Instance) string {
	return fmt.Sprintf("Quest completed: %s (+%d)", q.Name, quest.CompletionAward)
}

// refresh pushes the quest list to the display when it changed since the
// last push, or always when force is set.
func (g *Game) refresh(force bool) {
	state, err := g.quests.PlayerState()
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if force || !slices.EqualFunc(g.shown, state.Quests, sameProgress) {
		g.shown = state.Quests
		g.display.ShowQuestList(state.Quests)
	}
}

func sameProgress(a, b quest.Instance) bool {
	return a.QuestID == b.QuestID && a.Status == b.Status && a.Progress == b.Progress
}

// Activate starts a quest.
func (g *Game) Activate(ctx context.Context, questID int) (quest.Instance, error) {
	inst, err := g.quests.Activate(ctx, questID)
	if err != nil {
		return quest.Instance{}, err
	}
	g.display.ShowStatus("Quest activated: " + inst.Name)
	g.refresh(false)
	return inst, nil
}

// Complete finishes an active quest by hand.
func (g *Game) Complete(ctx context.Context, questID int) (quest.Instance, error) {
	inst, err := g.quests.Complete(ctx, questID)
	if err != nil {
		return quest.Instance{}, err
	}
	g.display.ShowStatus(completedStatus(inst))
	g.refresh(false)
	return inst, nil
}

// Reset wipes the player's progress.
func (g *Game) Reset(ctx context.Context) error {
	if err := g.quests.Reset(ctx); err != nil {
		return err
	}
	g.display.ShowStatus("Progress cleared")
	g.refresh(false)
	return nil
}

// AddDefinition extends the quest catalog.
func (g *Game) AddDefinition(name, description string, kind trigger.Kind, target uint32) (quest.Definition, error) {
	return g.quests.AddDefinition(name, description, kind, target)
}

// PlayerState returns a copy of the player's progress.
func (g *Game) PlayerState() (quest.PlayerState, error) {
	return g.quests.PlayerState()
}

// Catalog lists every quest definition.
func (g *Game) Catalog() []quest.Definition {
	return g.quests.Catalog()
}

// Ticks returns how many game loop iterations have run.
func (g *Game) Ticks() int64 {
	return g.ticker.Ticks()
}

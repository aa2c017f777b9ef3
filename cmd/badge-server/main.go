// Package main is the entry point for the Scavenger Sensory Hunt badge runtime.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/engine"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/network"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/config"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/radio"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/sensor"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

const (
	persistTimeout   = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
	eventPollPeriod  = 250 * time.Millisecond
	radioMinInterval = 100 * time.Millisecond
)

func main() {
	log.Println("[BADGE-SERVER] Initializing Scavenger Sensory Hunt badge runtime...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[BADGE-SERVER] Invalid configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	appLogger.SetDebug(cfg.Debug)
	collector := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: %v", err)
		os.Exit(1)
	}
	defer store.close()

	eventLog := events.NewEventLog(store.persister)
	eventLog.OnPersistError(func(e events.Event, err error) {
		appLogger.Error("Failed to persist event %s (%s): %v", e.ID, e.Type, err)
	})

	appLogger.Info("Bootstrapping sensors...")
	sampler := sensor.NewSampler(
		sensor.NewSimulatedBME690(cfg.SimSeed),
		sensor.NewSimulatedBMI270(cfg.SimSeed),
		sensor.SamplerConfig{Period: cfg.SamplePeriod, LogCapacity: cfg.VOCLogCapacity},
		appLogger.With("SENSOR"),
		collector,
	)

	appLogger.Info("Bootstrapping radio...")
	radioLogger := appLogger.With("RADIO")
	radioHub := network.NewHub("radio", radioLogger, collector)
	var (
		tx   radio.Transmitter = radioHub
		link *radio.WSLink
	)
	switch {
	case cfg.RadioOff:
		tx = radio.LogTransmitter{Logger: radioLogger}
	case cfg.RadioURL != "":
		link = radio.NewWSLink(cfg.RadioURL, radioLogger)
		tx = link
	}
	radioMgr := radio.NewManager(cfg.BadgeID, tx, radio.Config{
		BroadcastInterval: cfg.PresenceInterval,
		PeerTimeout:       cfg.PeerTimeout,
	}, radioLogger, collector, eventLog)
	radioHub.OnMessage(radioMinInterval, func(c *network.Client, frame []byte) {
		radioHub.Relay(c, frame)
		radioMgr.HandleFrame(frame)
	})

	var classifier trigger.Classifier
	if cfg.VOCModelPath != "" {
		model, err := trigger.LoadCentroidModel(cfg.VOCModelPath)
		if err != nil {
			appLogger.Warn("VOC model unavailable, using threshold table: %v", err)
		} else {
			info := model.Info()
			appLogger.Info("Loaded VOC model %s %s", info.Name, info.Version)
			classifier = model
		}
	}
	evaluator := trigger.NewEvaluator(sampler, radioMgr, classifier, cfg.MinConfidence, appLogger.With("TRIGGER"))

	appLogger.Info("Bootstrapping quest engine...")
	questEngine := quest.NewEngine(
		quest.NewBlobGateway(store.blobs),
		evaluator,
		quest.Options{
			Events:  eventLog,
			Metrics: collector,
			Logger:  appLogger.With("QUEST"),
			BadgeID: cfg.BadgeID,
		},
	)
	if cfg.CatalogPath != "" {
		if err := loadCatalog(cfg.CatalogPath, questEngine, appLogger); err != nil {
			appLogger.Error("Custom quest catalog rejected: %v", err)
		}
	}

	displayLogger := appLogger.With("DISPLAY")
	displayHub := network.NewHub("display", displayLogger, collector)
	display := network.NewDisplay(displayHub, displayLogger)

	game := engine.NewGame(engine.Components{
		Sampler:  sampler,
		Triggers: evaluator,
		Quests:   questEngine,
		Radio:    radioMgr,
		Display:  display,
	}, engine.Options{
		TickPeriod:    cfg.TickPeriod,
		Debug:         cfg.Debug,
		DebugInterval: cfg.DebugInterval,
	}, appLogger.With("GAME"), collector)

	if err := game.Boot(ctx); err != nil {
		appLogger.Error("Failed to load player state: %v", err)
		os.Exit(1)
	}

	// Setup API Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", displayHub.ServeWS)
	mux.HandleFunc("/radio", radioHub.ServeWS)
	mux.HandleFunc("/metrics", metrics.Handler(collector))
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler(collector))
	network.NewAPI(network.APIConfig{
		BadgeID:  cfg.BadgeID,
		Quests:   game,
		Sensors:  sampler,
		Triggers: evaluator,
		Peers:    radioMgr,
		History:  store.history,
		Events:   eventLog,
		Logger:   appLogger.With("API"),
	}).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { displayHub.Run(ctx); return nil })
	eg.Go(func() error { radioHub.Run(ctx); return nil })
	if link != nil {
		eg.Go(func() error { return link.Run(ctx, radioMgr.HandleFrame) })
	}
	display.StartEventPoller(ctx, eventLog, eventPollPeriod)
	eg.Go(func() error { return game.Run(ctx) })
	eg.Go(func() error {
		appLogger.Info("HTTP API & WS server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Println("[BADGE-SERVER] Badge running. Press Ctrl+C to exit.")
	err = eg.Wait()
	eventLog.Close()
	if err != nil {
		appLogger.Error("Badge stopped: %v", err)
		store.close()
		os.Exit(1)
	}
	log.Println("[BADGE-SERVER] Shut down cleanly.")
}

func loadCatalog(path string, e *quest.Engine, appLogger *logger.Logger) error {
	file, err := quest.LoadCatalogFile(path)
	if err != nil {
		return err
	}
	added, err := file.Apply(e)
	for _, d := range added {
		appLogger.Info("Custom quest %d: %s (%s x%d)", d.ID, d.Name, d.Trigger, d.Target)
	}
	return err
}

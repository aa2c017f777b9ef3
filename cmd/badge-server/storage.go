package main

import (
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/infra/storage"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/config"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
)

// badgeStorage is everything the runtime persists through. persister and
// history are nil when progress is kept in memory.
type badgeStorage struct {
	blobs     quest.BlobStore
	persister events.EventPersister
	history   *storage.History
	close     func() error
}

// openStorage opens the SQLite database at cfg.DBPath. With the database
// switched off, or no path set, player state lives in memory and the event
// ledger is not written through.
func openStorage(cfg config.Config, log *logger.Logger) (badgeStorage, error) {
	if cfg.DBOff || cfg.DBPath == "" {
		log.Warn("No database configured, progress will not survive a restart")
		return badgeStorage{
			blobs: storage.NewMemoryBlobStore(),
			close: func() error { return nil },
		}, nil
	}

	log.Info("Initializing SQLite database '%s'...", cfg.DBPath)
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		return badgeStorage{}, err
	}
	repo := storage.NewSQLiteEventRepository(db)
	return badgeStorage{
		blobs:     storage.NewSQLiteBlobStore(db),
		persister: storage.NewEventPersister(repo, persistTimeout),
		history:   storage.NewHistory(repo),
		close:     db.Close,
	}, nil
}

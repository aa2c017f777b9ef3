package storage

import (
	"context"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
)

// EventPersister adapts an EventRepository to events.EventPersister so the
// in-memory log can write through to the database.
type EventPersister struct {
	repo    EventRepository
	timeout time.Duration
}

// NewEventPersister bounds each write with timeout.
func NewEventPersister(repo EventRepository, timeout time.Duration) *EventPersister {
	return &EventPersister{repo: repo, timeout: timeout}
}

func (p *EventPersister) Append(e events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.repo.Append(ctx, StoredEvent{
		ID:        e.ID,
		BadgeID:   e.BadgeID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		QuestID:   e.QuestID,
		Payload:   e.Payload,
	})
}

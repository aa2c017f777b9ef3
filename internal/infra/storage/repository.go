// Package storage provides the persistence layer for the badge.
// It implements the repository pattern so the quest and event packages only
// see small interfaces.
package storage

import (
	"context"
	"time"
)

// StoredEvent mirrors events.Event for persistence.
type StoredEvent struct {
	ID        string         `json:"id"`
	BadgeID   string         `json:"badge_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	QuestID   int            `json:"quest_id"`
	Payload   map[string]any `json:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event StoredEvent) error

	// ListByBadge returns a badge's events oldest first. limit <= 0 means all.
	ListByBadge(ctx context.Context, badgeID string, limit int) ([]StoredEvent, error)

	// ListByQuest returns the events of one quest.
	ListByQuest(ctx context.Context, badgeID string, questID int) ([]StoredEvent, error)

	// ListByType returns all events of a specific type.
	ListByType(ctx context.Context, badgeID, eventType string) ([]StoredEvent, error)
}

// BlobStore keeps opaque records under a namespace and key. It matches the
// quest package's BlobStore.
type BlobStore interface {
	Load(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Save(ctx context.Context, namespace, key string, data []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

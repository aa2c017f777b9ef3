package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
)

// History rebuilds a readable quest history from the event ledger. It is
// used for the history endpoint and to audit the saved player record
// against what actually happened.
type History struct {
	eventRepo EventRepository
}

func NewHistory(eventRepo EventRepository) *History {
	return &History{eventRepo: eventRepo}
}

// Tally is the score implied by the events since the last reset.
type Tally struct {
	Activated int    `json:"activated"`
	Completed int    `json:"completed"`
	Score     uint32 `json:"score"`
	Resets    int    `json:"resets"`
}

// RecapEntry is one line of the history feed.
type RecapEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	QuestID   int       `json:"quest_id,omitempty"`
	Summary   string    `json:"summary"`
}

// Tally replays a badge's events. A reset zeroes the running totals.
func (h *History) Tally(ctx context.Context, badgeID string) (Tally, error) {
	all, err := h.eventRepo.ListByBadge(ctx, badgeID, 0)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to get events for badge: %w", err)
	}

	var t Tally
	for _, e := range all {
		switch events.EventType(e.EventType) {
		case events.EventTypeQuestActivated:
			t.Activated++
		case events.EventTypeQuestCompleted:
			t.Completed++
			if award, ok := e.Payload["award"].(float64); ok {
				t.Score += uint32(award)
			}
		case events.EventTypePlayerReset:
			t = Tally{Resets: t.Resets + 1}
		}
	}
	return t, nil
}

// RecapQuery narrows a recap. Zero values match everything.
type RecapQuery struct {
	Since     time.Time
	Limit     int
	QuestID   int
	EventType string
}

// Recap returns the newest limit entries after since, oldest first.
func (h *History) Recap(ctx context.Context, badgeID string, since time.Time, limit int) ([]RecapEntry, error) {
	return h.Query(ctx, badgeID, RecapQuery{Since: since, Limit: limit})
}

// Query returns the newest q.Limit matching entries, oldest first. A quest
// or type filter is answered by its own index.
func (h *History) Query(ctx context.Context, badgeID string, q RecapQuery) ([]RecapEntry, error) {
	var (
		all []StoredEvent
		err error
	)
	switch {
	case q.QuestID > 0:
		all, err = h.eventRepo.ListByQuest(ctx, badgeID, q.QuestID)
	case q.EventType != "":
		all, err = h.eventRepo.ListByType(ctx, badgeID, q.EventType)
	default:
		all, err = h.eventRepo.ListByBadge(ctx, badgeID, q.Limit)
	}
	if err != nil {
		return nil, err
	}

	recap := make([]RecapEntry, 0, len(all))
	for _, e := range all {
		if e.Timestamp.Before(q.Since) {
			continue
		}
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		recap = append(recap, RecapEntry{
			Timestamp: e.Timestamp,
			EventType: e.EventType,
			QuestID:   e.QuestID,
			Summary:   summarize(e),
		})
	}
	if q.Limit > 0 && len(recap) > q.Limit {
		recap = recap[len(recap)-q.Limit:]
	}
	return recap, nil
}

func summarize(e StoredEvent) string {
	name, _ := e.Payload["name"].(string)
	switch events.EventType(e.EventType) {
	case events.EventTypeQuestActivated:
		return fmt.Sprintf("Started %q", name)
	case events.EventTypeQuestProgress:
		return fmt.Sprintf("Progress %v/%v on quest %d", e.Payload["progress"], e.Payload["target"], e.QuestID)
	case events.EventTypeQuestCompleted:
		return fmt.Sprintf("Completed %q (+%v)", name, e.Payload["award"])
	case events.EventTypeCatalogExtended:
		return fmt.Sprintf("New quest available: %q", name)
	case events.EventTypePlayerReset:
		return "Progress cleared"
	case events.EventTypePeerSeen:
		return fmt.Sprintf("Met badge %v", e.Payload["peer"])
	default:
		return e.EventType
	}
}

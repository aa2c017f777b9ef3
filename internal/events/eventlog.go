// Package events keeps the append-only record of quest progress on the badge.
// The log is held in memory for the display feed and written through to a
// persister so the history survives restarts.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a badge event.
type EventType string

const (
	EventTypeQuestActivated  EventType = "QUEST_ACTIVATED"
	EventTypeQuestProgress   EventType = "QUEST_PROGRESS"
	EventTypeQuestCompleted  EventType = "QUEST_COMPLETED"
	EventTypeCatalogExtended EventType = "CATALOG_EXTENDED"
	EventTypePlayerReset     EventType = "PLAYER_RESET"
	EventTypePeerSeen        EventType = "PEER_SEEN"
)

// EventTypes lists every event type the badge records.
var EventTypes = []EventType{
	EventTypeQuestActivated,
	EventTypeQuestProgress,
	EventTypeQuestCompleted,
	EventTypeCatalogExtended,
	EventTypePlayerReset,
	EventTypePeerSeen,
}

// Event is an immutable record of something that happened on the badge.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	BadgeID   string         `json:"badge_id"`
	QuestID   int            `json:"quest_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event Event) error
}

// EventLog is the in-memory append-only log of badge events. Write-through
// goes through a single writer so the persister sees events in append order.
type EventLog struct {
	mu        sync.RWMutex
	events    []Event
	persister EventPersister
	onError   func(Event, error)
	queue     []Event
	wake      chan struct{}
	closed    bool
	pending   sync.WaitGroup
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	el := &EventLog{
		events:    make([]Event, 0),
		persister: persister,
	}
	if persister != nil {
		el.wake = make(chan struct{}, 1)
		go el.writeLoop()
	}
	return el
}

// OnPersistError registers a callback for failed write-through appends.
func (el *EventLog) OnPersistError(fn func(Event, error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds an event to the log, filling in ID and timestamp when unset,
// and returns the stored copy. Events are immutable once appended.
func (el *EventLog) Append(event Event) Event {
	if event.ID == "" {
		event.ID = NewEventID()
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
		// Keep filled-in timestamps monotonic so stored order matches append order.
		if n := len(el.events); n > 0 && event.Timestamp.Before(el.events[n-1].Timestamp) {
			event.Timestamp = el.events[n-1].Timestamp
		}
	}
	el.events = append(el.events, event)

	if el.persister != nil && !el.closed {
		el.queue = append(el.queue, event)
		el.pending.Add(1)
		select {
		case el.wake <- struct{}{}:
		default:
		}
	}
	return event
}

func (el *EventLog) writeLoop() {
	for range el.wake {
		el.flush()
	}
	el.flush()
}

func (el *EventLog) flush() {
	el.mu.Lock()
	batch := el.queue
	el.queue = nil
	onError := el.onError
	el.mu.Unlock()

	for _, e := range batch {
		if err := el.persister.Append(e); err != nil && onError != nil {
			onError(e, err)
		}
		el.pending.Done()
	}
}

// Wait blocks until every pending write-through has finished.
func (el *EventLog) Wait() {
	el.pending.Wait()
}

// Close flushes pending writes and stops the writer. Events appended after
// Close stay in memory only.
func (el *EventLog) Close() {
	el.mu.Lock()
	if el.wake != nil && !el.closed {
		el.closed = true
		close(el.wake)
	}
	el.mu.Unlock()
	el.pending.Wait()
}

// ByQuest returns all events concerning a quest.
func (el *EventLog) ByQuest(questID int) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if e.QuestID == questID {
			result = append(result, e)
		}
	}
	return result
}

// ByType returns all events of one type.
func (el *EventLog) ByType(t EventType) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []Event
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Since returns the events appended at or after cursor together with the
// cursor to pass on the next call.
func (el *EventLog) Since(cursor int) ([]Event, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if cursor < 0 || cursor > len(el.events) {
		cursor = len(el.events)
	}
	out := make([]Event, len(el.events)-cursor)
	copy(out, el.events[cursor:])
	return out, len(el.events)
}

// Len returns the number of events in the log.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]Event, len(el.events))
	copy(out, el.events)
	return out
}

// NewEventID creates a time-ordered unique event identifier.
func NewEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

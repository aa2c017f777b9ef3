package events

import (
	"errors"
	"sync"
	"testing"
)

type recordingPersister struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPersister) Append(e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func TestAppendFillsIdentity(t *testing.T) {
	log := NewEventLog(nil)
	e := log.Append(Event{Type: EventTypeQuestActivated, BadgeID: "b1", QuestID: 5})

	if e.ID == "" {
		t.Error("expected generated ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
	if log.Len() != 1 {
		t.Errorf("expected 1 event, got %d", log.Len())
	}
}

func TestQueries(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(Event{Type: EventTypeQuestActivated, QuestID: 5})
	log.Append(Event{Type: EventTypeQuestProgress, QuestID: 5})
	log.Append(Event{Type: EventTypeQuestActivated, QuestID: 1})
	log.Append(Event{Type: EventTypeQuestCompleted, QuestID: 5})

	if got := len(log.ByQuest(5)); got != 3 {
		t.Errorf("ByQuest(5): expected 3, got %d", got)
	}
	if got := len(log.ByType(EventTypeQuestActivated)); got != 2 {
		t.Errorf("ByType(activated): expected 2, got %d", got)
	}

	replay := log.Replay()
	replay[0].QuestID = 99
	if log.Replay()[0].QuestID != 5 {
		t.Error("Replay must return a copy")
	}
}

func TestSinceCursor(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(Event{Type: EventTypeQuestActivated})
	log.Append(Event{Type: EventTypeQuestProgress})

	batch, cursor := log.Since(0)
	if len(batch) != 2 || cursor != 2 {
		t.Fatalf("expected 2 events and cursor 2, got %d/%d", len(batch), cursor)
	}

	batch, cursor = log.Since(cursor)
	if len(batch) != 0 || cursor != 2 {
		t.Fatalf("expected nothing new, got %d/%d", len(batch), cursor)
	}

	log.Append(Event{Type: EventTypeQuestCompleted})
	batch, _ = log.Since(cursor)
	if len(batch) != 1 || batch[0].Type != EventTypeQuestCompleted {
		t.Errorf("expected the completion event, got %+v", batch)
	}

	if batch, cursor = log.Since(-1); len(batch) != 0 || cursor != 3 {
		t.Errorf("bad cursor should skip to the end, got %d/%d", len(batch), cursor)
	}
}

func TestWriteThrough(t *testing.T) {
	p := &recordingPersister{}
	log := NewEventLog(p)
	log.Append(Event{Type: EventTypeQuestActivated, QuestID: 1})
	log.Append(Event{Type: EventTypeQuestCompleted, QuestID: 1})
	log.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != 2 {
		t.Errorf("expected 2 persisted events, got %d", len(p.events))
	}
}

func TestWriteThroughKeepsAppendOrder(t *testing.T) {
	p := &recordingPersister{}
	log := NewEventLog(p)

	var want []string
	for i := 0; i < 500; i++ {
		e := log.Append(Event{Type: EventTypeQuestProgress, QuestID: i % 7})
		want = append(want, e.ID)
	}
	log.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != len(want) {
		t.Fatalf("expected %d persisted events, got %d", len(want), len(p.events))
	}
	for i, e := range p.events {
		if e.ID != want[i] {
			t.Fatalf("event %d persisted out of order: got %s, want %s", i, e.ID, want[i])
		}
		if i > 0 && e.Timestamp.Before(p.events[i-1].Timestamp) {
			t.Fatalf("event %d timestamp went backwards", i)
		}
	}
}

func TestCloseFlushesAndStopsWriteThrough(t *testing.T) {
	p := &recordingPersister{}
	log := NewEventLog(p)
	log.Append(Event{Type: EventTypeQuestActivated, QuestID: 1})
	log.Close()
	log.Close()

	log.Append(Event{Type: EventTypeQuestCompleted, QuestID: 1})
	log.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != 1 {
		t.Errorf("expected only the event appended before Close, got %d", len(p.events))
	}
	if log.Len() != 2 {
		t.Errorf("expected both events in memory, got %d", log.Len())
	}
}

func TestWriteThroughErrorsReported(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	log := NewEventLog(p)

	var mu sync.Mutex
	var failed []string
	log.OnPersistError(func(e Event, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, e.ID)
	})

	e := log.Append(Event{Type: EventTypePlayerReset})
	log.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != e.ID {
		t.Errorf("expected failure callback for %s, got %v", e.ID, failed)
	}
	if log.Len() != 1 {
		t.Error("in-memory log must keep the event even when persistence fails")
	}
}

func TestNewEventIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEventID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

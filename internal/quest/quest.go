// Package quest holds the quest state machine: the catalog of definitions,
// the player's quest instances, and the engine that advances them from
// trigger signals and persists every change.
package quest

import (
	"fmt"
	"slices"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

const (
	// MaxPlayerQuests is the number of instance slots in a PlayerState.
	MaxPlayerQuests = 10
	// CatalogCapacity is the number of definition slots in the catalog.
	CatalogCapacity = 20
	// CompletionAward is the score added for each completed quest.
	CompletionAward = 100

	MaxNameLen        = 31
	MaxDescriptionLen = 127
)

// Status is the lifecycle state of a quest instance.
type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	StatusCompleted
	// StatusFailed is reserved. No rule produces it yet.
	StatusFailed
)

var statusNames = [...]string{
	StatusInactive:  "inactive",
	StatusActive:    "active",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid quest status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown quest status %q", text)
}

// Definition is an immutable quest template from the catalog.
type Definition struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Trigger     trigger.Kind `json:"trigger"`
	Target      uint32       `json:"target"`
}

// Instance is the player's copy of a definition, taken at activation.
type Instance struct {
	QuestID     int          `json:"quest_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Trigger     trigger.Kind `json:"trigger"`
	Status      Status       `json:"status"`
	Progress    uint32       `json:"progress"`
	Target      uint32       `json:"target"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
}

func newInstance(d Definition) Instance {
	return Instance{
		QuestID:     d.ID,
		Name:        d.Name,
		Description: d.Description,
		Trigger:     d.Trigger,
		Status:      StatusActive,
		Target:      d.Target,
	}
}

// PlayerState is the persisted record of one player's progress. Quests
// keeps activation order.
type PlayerState struct {
	Quests         []Instance `json:"quests"`
	CompletedCount uint32     `json:"completed_count"`
	TotalScore     uint32     `json:"total_score"`
}

// Clone returns a deep copy.
func (p PlayerState) Clone() PlayerState {
	p.Quests = slices.Clone(p.Quests)
	return p
}

// ActiveCount returns the number of instances still in progress.
func (p PlayerState) ActiveCount() int {
	n := 0
	for _, q := range p.Quests {
		if q.Status == StatusActive {
			n++
		}
	}
	return n
}

func (p PlayerState) indexOf(questID int) int {
	return slices.IndexFunc(p.Quests, func(q Instance) bool { return q.QuestID == questID })
}

// complete transitions the instance at i and applies the award.
func (p *PlayerState) complete(i int, at time.Time) {
	q := &p.Quests[i]
	q.Status = StatusCompleted
	q.CompletedAt = at
	p.CompletedCount++
	p.TotalScore += CompletionAward
}

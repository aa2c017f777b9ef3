package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
)

// Display message types.
const (
	MsgTypeStatus = "status"
	MsgTypeQuests = "quests"
	MsgTypeEvent  = "event"
)

// DisplayMessage is one frame on the display feed.
type DisplayMessage struct {
	Type      string           `json:"type"`
	Timestamp int64            `json:"timestamp"`
	Status    string           `json:"status,omitempty"`
	Quests    []quest.Instance `json:"quests,omitempty"`
	Event     *events.Event    `json:"event,omitempty"`
}

// Display renders the badge screen as JSON frames on a websocket hub.
// Every call is fire-and-forget: a busy or empty hub never blocks the game.
type Display struct {
	hub    *Hub
	logger *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	last map[string][]byte // latest status and quest list, replayed to new clients
}

// NewDisplay attaches a display to hub. Call before hub.Run.
func NewDisplay(hub *Hub, log *logger.Logger) *Display {
	d := &Display{
		hub:    hub,
		logger: log,
		now:    time.Now,
		last:   make(map[string][]byte),
	}
	hub.OnConnect(d.replay)
	return d
}

func (d *Display) replay(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range []string{MsgTypeStatus, MsgTypeQuests} {
		if frame, ok := d.last[t]; ok {
			c.Send(frame)
		}
	}
}

func (d *Display) show(msg DisplayMessage) {
	msg.Timestamp = d.now().Unix()
	frame, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("Failed to serialize display frame: %v", err)
		return
	}
	if msg.Type != MsgTypeEvent {
		d.mu.Lock()
		d.last[msg.Type] = frame
		d.mu.Unlock()
	}
	if !d.hub.Broadcast(frame) {
		d.logger.Debug("Display frame dropped: hub busy")
	}
}

// ShowStatus puts a status line on screen.
func (d *Display) ShowStatus(status string) {
	d.logger.Debug("Display: %s", status)
	d.show(DisplayMessage{Type: MsgTypeStatus, Status: status})
}

// ShowQuestList renders the player's quests.
func (d *Display) ShowQuestList(quests []quest.Instance) {
	d.show(DisplayMessage{Type: MsgTypeQuests, Quests: quests})
}

// ShowEvent forwards one ledger event.
func (d *Display) ShowEvent(e events.Event) {
	d.show(DisplayMessage{Type: MsgTypeEvent, Event: &e})
}

// StartEventPoller spawns a goroutine that pushes new ledger events to the
// display so the feed picks them up without coupling to the game loop.
func (d *Display) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	_, cursor := eventLog.Since(-1)
	go func() {
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				var batch []events.Event
				batch, cursor = eventLog.Since(cursor)
				for _, e := range batch {
					d.ShowEvent(e)
				}
			}
		}
	}()
}

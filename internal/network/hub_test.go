package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/quest"
)

func startHub(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// readFrames reads until n newline-separated frames have arrived.
func readFrames(t *testing.T, conn *websocket.Conn, n int) [][]byte {
	t.Helper()
	var frames [][]byte
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(frames) < n {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d frames: %v", len(frames), err)
		}
		frames = append(frames, bytes.Split(data, []byte{'\n'})...)
	}
	return frames
}

func TestRelaySkipsSender(t *testing.T) {
	hub := NewHub("radio", logger.Discard(), nil)
	hub.OnMessage(0, func(c *Client, data []byte) { hub.Relay(c, data) })
	srv := startHub(t, hub)

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	if err := a.WriteMessage(websocket.TextMessage, []byte("PRESENCE:badge-a")); err != nil {
		t.Fatal(err)
	}
	got := readFrames(t, b, 1)
	if string(got[0]) != "PRESENCE:badge-a" {
		t.Errorf("b received %q", got[0])
	}

	a.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := a.ReadMessage(); err == nil {
		t.Errorf("sender received its own frame %q", data)
	}
}

func TestTransmitReachesAllClients(t *testing.T) {
	hub := NewHub("radio", logger.Discard(), nil)
	srv := startHub(t, hub)
	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	if err := hub.Transmit(context.Background(), []byte("PRESENCE:local")); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*websocket.Conn{a, b} {
		if got := readFrames(t, c, 1); string(got[0]) != "PRESENCE:local" {
			t.Errorf("received %q", got[0])
		}
	}
}

func TestTransmitBusy(t *testing.T) {
	hub := NewHub("radio", logger.Discard(), nil) // not running, queue never drains
	for range broadcastQueue {
		if err := hub.Transmit(context.Background(), []byte("x")); err != nil {
			t.Fatalf("queue filled early: %v", err)
		}
	}
	if err := hub.Transmit(context.Background(), []byte("x")); err != ErrHubBusy {
		t.Errorf("err = %v, want ErrHubBusy", err)
	}
}

func TestDisplayReplaysLatestScreen(t *testing.T) {
	hub := NewHub("display", logger.Discard(), nil)
	display := NewDisplay(hub, logger.Discard())
	srv := startHub(t, hub)

	display.ShowStatus("Welcome")
	display.ShowStatus("Quest activated")
	display.ShowQuestList([]quest.Instance{{QuestID: 1, Name: "Rain Walker", Status: quest.StatusActive, Target: 5}})

	// Let the hub drain the broadcasts before anyone is listening.
	time.Sleep(50 * time.Millisecond)

	conn := dial(t, srv)
	frames := readFrames(t, conn, 2)

	var status, list DisplayMessage
	if err := json.Unmarshal(frames[0], &status); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(frames[1], &list); err != nil {
		t.Fatal(err)
	}
	if status.Type != MsgTypeStatus || status.Status != "Quest activated" {
		t.Errorf("status frame = %+v", status)
	}
	if list.Type != MsgTypeQuests || len(list.Quests) != 1 || list.Quests[0].Name != "Rain Walker" {
		t.Errorf("quest frame = %+v", list)
	}
}

func TestEventPollerForwardsNewEvents(t *testing.T) {
	hub := NewHub("display", logger.Discard(), nil)
	display := NewDisplay(hub, logger.Discard())
	srv := startHub(t, hub)

	eventLog := events.NewEventLog(nil)
	eventLog.Append(events.Event{Type: events.EventTypePlayerReset, BadgeID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	display.StartEventPoller(ctx, eventLog, 10*time.Millisecond)

	conn := dial(t, srv)
	waitClients(t, hub, 1)
	eventLog.Append(events.Event{Type: events.EventTypeQuestActivated, BadgeID: "b", QuestID: 4})

	var msg DisplayMessage
	if err := json.Unmarshal(readFrames(t, conn, 1)[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgTypeEvent || msg.Event == nil || msg.Event.QuestID != 4 {
		t.Errorf("event frame = %+v", msg)
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub("display", logger.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("clients after shutdown = %d", hub.ClientCount())
	}
}

package network

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
)

// ErrHubBusy is returned when the broadcast queue is full.
var ErrHubBusy = errors.New("hub broadcast queue full")

const broadcastQueue = 64

type outbound struct {
	data []byte
	from *Client // skipped when relaying; nil for local broadcasts
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The badge runs two: the display feed, which only sends, and the radio
// relay, which forwards every client frame to all other clients.
type Hub struct {
	name       string
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	onConnect   func(*Client)
	onMessage   func(*Client, []byte)
	minInterval time.Duration

	upgrader websocket.Upgrader
	logger   *logger.Logger
	metrics  *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(name string, log *logger.Logger, m *metrics.Collector) *Hub {
	return &Hub{
		name:       name,
		broadcast:  make(chan outbound, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  log,
		metrics: m,
	}
}

// OnConnect registers a callback run for every new client. Set before Run.
func (h *Hub) OnConnect(fn func(*Client)) { h.onConnect = fn }

// OnMessage registers the handler for client frames, which are accepted at
// most once per minInterval per client. Without a handler client frames are
// dropped. Set before Run.
func (h *Hub) OnMessage(minInterval time.Duration, fn func(*Client, []byte)) {
	h.minInterval = minInterval
	h.onMessage = fn
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub %s shutting down.", h.name)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New %s client connected", h.name)
			if h.onConnect != nil {
				h.onConnect(client)
			}
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client == msg.from {
					continue
				}
				select {
				case client.send <- msg.data:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSMessage(true)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.metrics.RecordWSConnection(-1)
		h.logger.Info("%s client disconnected", h.name)
	}
}

// Broadcast queues data for every client without blocking. It reports
// false when the queue is full and the message was dropped.
func (h *Hub) Broadcast(data []byte) bool {
	return h.enqueue(outbound{data: data})
}

func (h *Hub) enqueue(msg outbound) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.metrics.RecordWSMessage(true)
		return false
	}
}

// Relay forwards a client's frame to every other client.
func (h *Hub) Relay(from *Client, data []byte) bool {
	return h.enqueue(outbound{data: data, from: from})
}

// Transmit lets the hub act as the local badge's radio.
func (h *Hub) Transmit(_ context.Context, frame []byte) error {
	if !h.Broadcast(frame) {
		return ErrHubBusy
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade on %s failed: %v", h.name, err)
		return
	}
	client := NewClient(h, conn)
	if !client.Register() {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

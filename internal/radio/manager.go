// Package radio handles badge-to-badge proximity: periodic presence
// broadcasts and tracking of peers heard recently.
package radio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/events"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/metrics"
)

const (
	DefaultBroadcastInterval = 5 * time.Second
	DefaultPeerTimeout       = 15 * time.Second

	presencePrefix = "PRESENCE:"
	sendTimeout    = 500 * time.Millisecond
)

// Transmitter sends one radio frame. Implementations must not block past
// the context deadline.
type Transmitter interface {
	Transmit(ctx context.Context, frame []byte) error
}

// Config tunes the manager.
type Config struct {
	BroadcastInterval time.Duration
	PeerTimeout       time.Duration
	Now               func() time.Time
}

// Peer is another badge heard on the radio.
type Peer struct {
	BadgeID  string    `json:"badge_id"`
	LastSeen time.Time `json:"last_seen"`
}

// Manager rate-limits presence broadcasts and remembers which badges have
// announced themselves.
type Manager struct {
	badgeID     string
	tx          Transmitter
	interval    time.Duration
	peerTimeout time.Duration
	now         func() time.Time

	mu            sync.Mutex
	lastBroadcast time.Time
	peers         map[string]time.Time

	events  *events.EventLog
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewManager creates a manager. A nil tx makes broadcasts no-ops.
func NewManager(badgeID string, tx Transmitter, cfg Config, log *logger.Logger, m *metrics.Collector, ev *events.EventLog) *Manager {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = DefaultPeerTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		badgeID:     badgeID,
		tx:          tx,
		interval:    cfg.BroadcastInterval,
		peerTimeout: cfg.PeerTimeout,
		now:         cfg.Now,
		peers:       make(map[string]time.Time),
		events:      ev,
		metrics:     m,
		logger:      log,
	}
}

// PresenceFrame returns the announcement for a badge.
func PresenceFrame(badgeID string) []byte {
	return []byte(presencePrefix + badgeID)
}

// ParsePresence extracts the badge id from a presence frame.
func ParsePresence(frame []byte) (string, bool) {
	s := strings.TrimSpace(string(frame))
	id, ok := strings.CutPrefix(s, presencePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// BroadcastPresence announces this badge at most once per interval. It
// reports whether a frame was sent. Transmit failures are returned but never
// retried before the next interval.
func (m *Manager) BroadcastPresence(ctx context.Context) (bool, error) {
	m.mu.Lock()
	now := m.now()
	if !m.lastBroadcast.IsZero() && now.Sub(m.lastBroadcast) < m.interval {
		m.mu.Unlock()
		return false, nil
	}
	m.lastBroadcast = now
	m.mu.Unlock()

	if m.tx == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := m.tx.Transmit(ctx, PresenceFrame(m.badgeID)); err != nil {
		return false, fmt.Errorf("broadcast presence: %w", err)
	}
	m.metrics.RecordPresence()
	m.logger.Debug("Broadcasting presence: %s", m.badgeID)
	return true, nil
}

// HandleFrame processes a received frame. Frames from this badge and
// anything that is not a presence announcement are ignored.
func (m *Manager) HandleFrame(frame []byte) {
	id, ok := ParsePresence(frame)
	if !ok || id == m.badgeID {
		return
	}

	m.mu.Lock()
	now := m.now()
	last, known := m.peers[id]
	m.peers[id] = now
	m.mu.Unlock()

	if !known || now.Sub(last) > m.peerTimeout {
		m.logger.Info("Badge nearby: %s", id)
		if m.events != nil {
			m.events.Append(events.Event{
				Type:    events.EventTypePeerSeen,
				BadgeID: m.badgeID,
				Payload: map[string]any{"peer": id},
			})
		}
	}
}

// IsPeerNearby reports whether any other badge was heard within the peer
// timeout.
func (m *Manager) IsPeerNearby() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, seen := range m.peers {
		if now.Sub(seen) <= m.peerTimeout {
			return true
		}
		delete(m.peers, id)
	}
	return false
}

// Peers lists the badges currently in range, most recent first.
func (m *Manager) Peers() []Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]Peer, 0, len(m.peers))
	for id, seen := range m.peers {
		if now.Sub(seen) <= m.peerTimeout {
			out = append(out, Peer{BadgeID: id, LastSeen: seen})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// Run broadcasts presence on every tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if _, err := m.BroadcastPresence(ctx); err != nil {
			m.logger.Debug("%v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

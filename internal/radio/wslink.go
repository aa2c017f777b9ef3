package radio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	redialInterval = 3 * time.Second
	maxFrameSize   = 512
)

// ErrNotConnected is returned by Transmit while the link is down.
var ErrNotConnected = errors.New("radio link not connected")

// WSLink carries radio frames over a websocket relay. Every frame written by
// one badge is delivered to every other badge connected to the same relay.
type WSLink struct {
	url    string
	dialer *websocket.Dialer
	logger *logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSLink creates a link to the relay at url, e.g. ws://host:8080/radio.
func NewWSLink(url string, log *logger.Logger) *WSLink {
	return &WSLink{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger: log,
	}
}

// Transmit writes one frame. It fails fast when the link is down.
func (l *WSLink) Transmit(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	l.conn.SetWriteDeadline(deadline)
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Run keeps the link connected and passes every received frame to handle.
// It redials after failures and returns when ctx is cancelled.
func (l *WSLink) Run(ctx context.Context, handle func([]byte)) error {
	for {
		if err := l.session(ctx, handle); err != nil && ctx.Err() == nil {
			l.logger.Warn("Radio link to %s lost: %v", l.url, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(redialInterval):
		}
	}
}

func (l *WSLink) session(ctx context.Context, handle func([]byte)) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.logger.Info("Radio link connected to %s", l.url)

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		// The relay may batch queued frames into one message.
		for _, f := range bytes.Split(frame, []byte{'\n'}) {
			if len(f) > 0 {
				handle(f)
			}
		}
	}
}

// Connected reports whether the link is up.
func (l *WSLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

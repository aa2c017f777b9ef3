package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/network"
	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
)

func TestSwarmHearsEveryBadge(t *testing.T) {
	hub := network.NewHub("radio", logger.Discard(), nil)
	hub.OnMessage(0, func(c *network.Client, frame []byte) { hub.Relay(c, frame) })
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	stats := runSwarm(ctx, Config{
		ServerURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		NumBadges: 3,
		Interval:  40 * time.Millisecond,
	})

	if stats.Errors != 0 {
		t.Errorf("errors = %d", stats.Errors)
	}
	if stats.FramesSent == 0 || stats.FramesReceived == 0 {
		t.Fatalf("sent %d received %d", stats.FramesSent, stats.FramesReceived)
	}
	if c := stats.Coverage(3); c < 1 {
		t.Errorf("coverage = %.2f, want 1", c)
	}
}

func TestSplitFrames(t *testing.T) {
	got := splitFrames([]byte("PRESENCE:a\nPRESENCE:b"))
	if len(got) != 2 || string(got[0]) != "PRESENCE:a" || string(got[1]) != "PRESENCE:b" {
		t.Errorf("splitFrames = %q", got)
	}
}

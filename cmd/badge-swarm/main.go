// Command badge-swarm is a load generator for the radio relay: it connects
// many virtual badges to /radio and has each announce its presence.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/radio"
)

// Config for the swarm
type Config struct {
	ServerURL    string
	NumBadges    int
	Interval     time.Duration
	TestDuration time.Duration
	ResultsPath  string
}

// Stats tracks relay throughput.
type Stats struct {
	FramesSent     int64
	FramesReceived int64
	Errors         int64

	mu        sync.Mutex
	Latencies []time.Duration
	heard     map[string]map[string]bool // listener -> peers heard
}

func newStats() *Stats {
	return &Stats{
		Latencies: make([]time.Duration, 0, 10000),
		heard:     make(map[string]map[string]bool),
	}
}

func (s *Stats) hear(listener, peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.heard[listener]
	if !ok {
		m = make(map[string]bool)
		s.heard[listener] = m
	}
	m[peer] = true
}

// Coverage is the mean fraction of the other badges each badge heard.
func (s *Stats) Coverage(numBadges int) float64 {
	if numBadges < 2 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, peers := range s.heard {
		total += float64(len(peers)) / float64(numBadges-1)
	}
	return total / float64(numBadges)
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/radio", "radio relay URL")
	numBadges := flag.Int("badges", 20, "number of virtual badges")
	interval := flag.Duration("interval", radio.DefaultBroadcastInterval, "presence interval per badge")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	results := flag.String("results", "swarm_results.json", "where to write the JSON summary")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		NumBadges:    *numBadges,
		Interval:     *interval,
		TestDuration: *duration,
		ResultsPath:  *results,
	}

	fmt.Println("=========================================")
	fmt.Println("BADGE SWARM - radio relay load test")
	fmt.Println("=========================================")
	fmt.Printf("Relay:    %s\n", config.ServerURL)
	fmt.Printf("Badges:   %d\n", config.NumBadges)
	fmt.Printf("Interval: %v\n", config.Interval)
	fmt.Printf("Duration: %v\n", config.TestDuration)

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runSwarm(ctx, config)
	printResults(stats, config)
}

func runSwarm(ctx context.Context, config Config) *Stats {
	stats := newStats()
	var wg sync.WaitGroup

	for i := 0; i < config.NumBadges; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runBadge(ctx, fmt.Sprintf("SWARM_%03d", n), config, stats)
		}(i)

		// Stagger connects to avoid a thundering herd.
		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()
	return stats
}

func runBadge(ctx context.Context, badgeID string, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("%s: connection failed: %v", badgeID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, frame := range splitFrames(data) {
				if peer, ok := radio.ParsePresence(frame); ok && peer != badgeID {
					atomic.AddInt64(&stats.FramesReceived, 1)
					stats.hear(badgeID, peer)
				}
			}
		}
	}()

	// Random phase so the badges do not announce in lockstep.
	jitter := time.Duration(rand.Int64N(int64(config.Interval) + 1))
	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		if err := conn.WriteMessage(websocket.TextMessage, radio.PresenceFrame(badgeID)); err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		}
		atomic.AddInt64(&stats.FramesSent, 1)
		stats.mu.Lock()
		stats.Latencies = append(stats.Latencies, time.Since(start))
		stats.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// splitFrames undoes the relay's batching of queued frames.
func splitFrames(data []byte) [][]byte {
	return bytes.Split(data, []byte{'\n'})
}

func printResults(stats *Stats, config Config) {
	sent := atomic.LoadInt64(&stats.FramesSent)
	recv := atomic.LoadInt64(&stats.FramesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	coverage := stats.Coverage(config.NumBadges)

	fmt.Println("\n=========================================")
	fmt.Println("SWARM RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Frames sent:     %d\n", sent)
	fmt.Printf("Frames received: %d\n", recv)
	fmt.Printf("Errors:          %d\n", errs)
	fmt.Printf("Peer coverage:   %.1f%%\n", coverage*100)

	stats.mu.Lock()
	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		fmt.Printf("Write latency:   min %v avg %v max %v\n", lo, total/time.Duration(len(stats.Latencies)), hi)
	}
	stats.mu.Unlock()

	results := map[string]any{
		"frames_sent":     sent,
		"frames_received": recv,
		"errors":          errs,
		"peer_coverage":   coverage,
		"config": map[string]any{
			"badges":   config.NumBadges,
			"interval": config.Interval.String(),
			"duration": config.TestDuration.String(),
		},
	}
	data, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.ResultsPath, data, 0o644); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Printf("Results saved to %s\n", config.ResultsPath)
}

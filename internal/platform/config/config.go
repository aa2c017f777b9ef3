// Package config loads runtime settings for the badge from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the badge runtime.
type Config struct {
	BadgeID  string `env:"BADGE_ID"        envDefault:"WHY2025_BADGE"`
	DBPath   string `env:"BADGE_DB_PATH"   envDefault:"badge.db"`
	DBOff    bool   `env:"BADGE_DB_OFF"` // keep player state in memory only
	HTTPAddr string `env:"BADGE_HTTP_ADDR" envDefault:":8080"`

	// Loop periods
	SamplePeriod time.Duration `env:"BADGE_SAMPLE_PERIOD" envDefault:"100ms"`
	TickPeriod   time.Duration `env:"BADGE_TICK_PERIOD"   envDefault:"100ms"`

	// Radio
	PresenceInterval time.Duration `env:"BADGE_PRESENCE_INTERVAL" envDefault:"5s"`
	PeerTimeout      time.Duration `env:"BADGE_PEER_TIMEOUT"      envDefault:"15s"`
	RadioURL         string        `env:"BADGE_RADIO_URL"` // relay websocket; empty means the local /radio hub
	RadioOff         bool          `env:"BADGE_RADIO_OFF"` // log presence frames instead of sending them

	// Classification and catalog
	VOCModelPath  string  `env:"BADGE_VOC_MODEL_PATH"`
	CatalogPath   string  `env:"BADGE_CATALOG_PATH"`
	MinConfidence float64 `env:"BADGE_MIN_CONFIDENCE" envDefault:"0.5"`

	// Data collection
	VOCLogCapacity int `env:"BADGE_VOC_LOG_CAPACITY" envDefault:"1000"`

	// Diagnostics
	Debug         bool          `env:"BADGE_DEBUG"`
	DebugInterval time.Duration `env:"BADGE_DEBUG_INTERVAL" envDefault:"10s"`
	SimSeed       int64         `env:"BADGE_SIM_SEED"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot operate with.
func (c Config) Validate() error {
	if c.SamplePeriod <= 0 {
		return fmt.Errorf("sample period must be positive, got %s", c.SamplePeriod)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %s", c.TickPeriod)
	}
	if c.PresenceInterval <= 0 {
		return fmt.Errorf("presence interval must be positive, got %s", c.PresenceInterval)
	}
	if c.VOCLogCapacity <= 0 {
		return fmt.Errorf("voc log capacity must be positive, got %d", c.VOCLogCapacity)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got %v", c.MinConfidence)
	}
	if c.BadgeID == "" {
		return fmt.Errorf("badge id must not be empty")
	}
	if c.RadioURL != "" {
		u, err := url.Parse(c.RadioURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("radio url must be a ws:// or wss:// url, got %q", c.RadioURL)
		}
	}
	return nil
}

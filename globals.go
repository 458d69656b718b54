package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"

	"github.com/davergrounds/galactic-empires/pkg/ledger"
	"github.com/davergrounds/galactic-empires/pkg/session"
)

// --- Configuration ---

type Config struct {
	Addr        string        `env:"GALACTIC_ADDR" envDefault:":8080"`
	LogDir      string        `env:"GALACTIC_LOG_DIR" envDefault:"./logs"`
	DBDriver    string        `env:"GALACTIC_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string        `env:"GALACTIC_DB_PATH" envDefault:"file::memory:?cache=shared"`
	Ledger      bool          `env:"GALACTIC_LEDGER" envDefault:"true"`
	RateLimit   float64       `env:"GALACTIC_RATE_LIMIT" envDefault:"10"`
	RateBurst   int           `env:"GALACTIC_RATE_BURST" envDefault:"20"`
	MaxSessions int           `env:"GALACTIC_MAX_SESSIONS" envDefault:"1000"`
	SessionTTL  time.Duration `env:"GALACTIC_SESSION_TTL" envDefault:"24h"`
	Seed        int64         `env:"GALACTIC_SEED" envDefault:"0"`
}

const (
	JanitorInterval = time.Minute
	MaxBodyBytes    = 64 << 10
)

var (
	// Infrastructure
	cfg      Config
	InfoLog  *log.Logger
	ErrorLog *log.Logger
	turnLog  *ledger.Ledger

	// Game
	games   *session.Service
	streams *StreamHub

	// Rate Limiting
	ipLimiters = make(map[string]*rate.Limiter)
	ipLock     sync.Mutex
)

func loadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "sqlite3" {
		return Config{}, fmt.Errorf("GALACTIC_DB_DRIVER must be sqlite or sqlite3, got %q", c.DBDriver)
	}
	return c, nil
}

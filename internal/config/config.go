// internal/config/config.go
//
// Process configuration for the server and the terminal player.
//
// Values come from the environment, after an optional `.env` file in the
// working directory has been loaded (development convenience). Variables that
// are already set in the environment win over `.env`.
//
// Environment variables:
//   PORT            listen port (5175)
//   LOG_LEVEL       zerolog level name (info)
//   CLIENT_ORIGIN   allowed CORS / WebSocket origin (http://localhost:5173)
//   SESSION_SECRET  HMAC key for session tokens (DevSecret when empty)
//   SESSION_TTL     token lifetime (12h)
//   SESSION_IDLE    sessions untouched this long are dropped (2h)
//   CATALOG_FILE    alternative catalog JSON; embedded default when empty
//   REVERT_DELAY    incorrect placement → species returned (3s)
//   NOTE_DELAY      correct placement → educational note shown (2s)
//   FEEDBACK_TTL    any placement → message cleared (4s)

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/robalobadob/oceantree/internal/game"
)

// DevSecret is the fallback signing key; never use it in production.
const DevSecret = "dev_secret_change_me"

// Config holds every tunable of the process.
type Config struct {
	Port          string        `env:"PORT" envDefault:"5175"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	ClientOrigin  string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SessionIdle   time.Duration `env:"SESSION_IDLE" envDefault:"2h"`
	CatalogFile   string        `env:"CATALOG_FILE"`
	RevertDelay   time.Duration `env:"REVERT_DELAY" envDefault:"3s"`
	NoteDelay     time.Duration `env:"NOTE_DELAY" envDefault:"2s"`
	FeedbackTTL   time.Duration `env:"FEEDBACK_TTL" envDefault:"4s"`
}

// Load reads `.env` (if present) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = DevSecret
	}
	if cfg.RevertDelay < 0 || cfg.NoteDelay < 0 || cfg.FeedbackTTL < 0 {
		return Config{}, fmt.Errorf("parse env: negative delay")
	}
	return cfg, nil
}

// Timing converts the delay settings for the game engine.
func (c Config) Timing() game.Timing {
	return game.Timing{
		RevertDelay: c.RevertDelay,
		NoteDelay:   c.NoteDelay,
		FeedbackTTL: c.FeedbackTTL,
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// Package config loads client settings from the environment.
//
// Values are read once at startup; CLI flags may override individual fields afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	APIURL         string        `env:"FLOW_API_URL"         envDefault:"http://localhost:8080"`
	ConfigDir      string        `env:"FLOW_CONFIG_DIR"`
	SessionBackend string        `env:"FLOW_SESSION_BACKEND" envDefault:"file"`
	AutosaveDelay  time.Duration `env:"FLOW_AUTOSAVE_DELAY"  envDefault:"1s"`
	SavedDisplay   time.Duration `env:"FLOW_SAVED_DISPLAY"   envDefault:"1500ms"`
	RequestRate    float64       `env:"FLOW_REQUEST_RATE"    envDefault:"20"`
	RequestBurst   int           `env:"FLOW_REQUEST_BURST"   envDefault:"10"`
	HTTPTimeout    time.Duration `env:"FLOW_HTTP_TIMEOUT"    envDefault:"0s"`
	LogLevel       string        `env:"FLOW_LOG_LEVEL"       envDefault:"info"`
	LogFile        string        `env:"FLOW_LOG_FILE"`
}

// Load parses the environment and fills derived defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills derived defaults and validates the result. It is safe to call again after
// flag overrides.
func (c *Config) Normalize() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return errors.New("api url is empty")
	}
	if strings.TrimSpace(c.ConfigDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		c.ConfigDir = filepath.Join(home, ".flow")
	}
	if strings.TrimSpace(c.LogFile) == "" {
		c.LogFile = filepath.Join(c.ConfigDir, "flow.log")
	}
	switch strings.ToLower(strings.TrimSpace(c.SessionBackend)) {
	case "", BackendFile:
		c.SessionBackend = BackendFile
	case BackendSQLite:
		c.SessionBackend = BackendSQLite
	default:
		return fmt.Errorf("unknown session backend %q (want %s|%s)", c.SessionBackend, BackendFile, BackendSQLite)
	}
	if c.AutosaveDelay <= 0 {
		c.AutosaveDelay = time.Second
	}
	if c.SavedDisplay <= 0 {
		c.SavedDisplay = 1500 * time.Millisecond
	}
	if c.RequestBurst <= 0 {
		c.RequestBurst = 1
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// BaseURL is the REST root all endpoints hang off.
func (c Config) BaseURL() string {
	return c.APIURL + "/api"
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

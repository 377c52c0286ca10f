package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FLOW_CONFIG_DIR", dir)
	for _, k := range []string{"FLOW_API_URL", "FLOW_SESSION_BACKEND", "FLOW_AUTOSAVE_DELAY", "FLOW_SAVED_DISPLAY", "FLOW_HTTP_TIMEOUT", "FLOW_LOG_FILE"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.BaseURL() != "http://localhost:8080/api" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL())
	}
	if cfg.AutosaveDelay != time.Second {
		t.Fatalf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.SavedDisplay != 1500*time.Millisecond {
		t.Fatalf("SavedDisplay = %v", cfg.SavedDisplay)
	}
	if cfg.SessionBackend != BackendFile {
		t.Fatalf("SessionBackend = %q", cfg.SessionBackend)
	}
	if cfg.LogFile != filepath.Join(dir, "flow.log") {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
	if cfg.HTTPTimeout != 0 {
		t.Fatalf("HTTPTimeout = %v, want none", cfg.HTTPTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FLOW_CONFIG_DIR", t.TempDir())
	t.Setenv("FLOW_API_URL", "https://notes.example.com/")
	t.Setenv("FLOW_SESSION_BACKEND", "SQLite")
	t.Setenv("FLOW_AUTOSAVE_DELAY", "250ms")
	t.Setenv("FLOW_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL() != "https://notes.example.com/api" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL())
	}
	if cfg.SessionBackend != BackendSQLite {
		t.Fatalf("SessionBackend = %q", cfg.SessionBackend)
	}
	if cfg.AutosaveDelay != 250*time.Millisecond {
		t.Fatalf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "backend", key: "FLOW_SESSION_BACKEND", val: "redis", want: "unknown session backend"},
		{name: "duration", key: "FLOW_AUTOSAVE_DELAY", val: "soon", want: "parse env"},
		{name: "level", key: "FLOW_LOG_LEVEL", val: "loud", want: "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FLOW_CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

package tui

import (
	"context"
	"log/slog"
	"time"

	"flow-cli/internal/auth"
	"flow-cli/internal/autosave"
	"flow-cli/internal/metrics"
	"flow-cli/internal/pages"
	"flow-cli/internal/session"
	"flow-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

// Options wires the TUI to the client services.
type Options struct {
	Pages   *pages.Service
	Auth    *auth.Service
	Session *session.Store
	// Store persists the last screen; a zero Store disables it.
	Store   store.Store
	Logger  *slog.Logger
	Metrics metrics.Recorder

	AutosaveDelay time.Duration
	SavedDisplay  time.Duration
	// Clock drives autosave timers. Nil means the real clock.
	Clock autosave.Clock
}

func Run(opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newAppModel(opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(appModel); ok {
		fm.shutdown(context.Background())
	} else {
		m.shutdown(context.Background())
	}
	return err
}

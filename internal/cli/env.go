package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"flow-cli/internal/api"
	"flow-cli/internal/auth"
	"flow-cli/internal/config"
	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"
	"flow-cli/internal/pages"
	"flow-cli/internal/session"
	"flow-cli/internal/store"

	"golang.org/x/time/rate"
)

// env is everything a command needs, built from config plus flag overrides.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	store   store.Store
	kv      store.KV
	session *session.Store
	client  *api.Client
	pages   *pages.Service
	auth    *auth.Service
	metrics metrics.Recorder

	closers []io.Closer
}

// openEnv loads config, restores the session and wires the services. rec may be nil.
func openEnv(app *App, rec metrics.Recorder) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if app.APIURL != "" {
		cfg.APIURL = app.APIURL
	}
	if app.ConfigDir != "" {
		cfg.ConfigDir = app.ConfigDir
	}
	if app.LogLevel != "" {
		cfg.LogLevel = app.LogLevel
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, metrics: metrics.OrNop(rec)}
	level, _ := config.ParseLevel(cfg.LogLevel)
	l, c, err := logger.Open(cfg.LogFile, level)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	e.logger = l
	e.closers = append(e.closers, c)

	e.store = store.Store{Dir: cfg.ConfigDir}
	if err := e.store.Ensure(); err != nil {
		e.Close()
		return nil, err
	}
	kv, err := e.store.OpenKV(cfg.SessionBackend)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.kv = kv
	if c, ok := kv.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}

	e.session = session.New(kv, l)
	e.session.Restore()

	e.client, err = api.New(api.Options{
		BaseURL: cfg.BaseURL(),
		Tokens:  e.session,
		Limiter: rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst),
		Timeout: cfg.HTTPTimeout,
		Logger:  l,
		Metrics: e.metrics,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.pages, err = pages.New(e.client, e.session, pages.Options{Logger: l, Metrics: e.metrics})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.auth = auth.New(e.client, e.session, l)
	return e, nil
}

func (e *env) Close() {
	if e.pages != nil {
		e.pages.Wait()
		e.pages.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

var errNotLoggedIn = errors.New("not logged in (run `flow login`)")

func (e *env) requireAuth() error {
	if !e.session.Current().Authenticated() {
		return errNotLoggedIn
	}
	return nil
}

func parsePageID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid page id %q", s)
	}
	return id, nil
}

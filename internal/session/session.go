// Package session holds the process-wide authentication state: the current user and bearer
// token, mirrored to durable key-value storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"flow-cli/internal/logger"
	"flow-cli/internal/model"
	"flow-cli/internal/store"
)

// Persisted keys.
const (
	TokenKey = "flow_token"
	UserKey  = "flow_user"
)

// ErrInvalidAuth is returned by SetAuth when the user or token is missing.
var ErrInvalidAuth = errors.New("session requires a user and a non-empty token")

// Store is the single session instance. Create it once with New, call Restore at startup, and
// inject it into consumers.
type Store struct {
	kv     store.KV
	logger *slog.Logger

	mu    sync.RWMutex
	state model.Session

	subMu  sync.Mutex
	subs   map[int]func(model.Session)
	nextID int
}

func New(kv store.KV, l *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.OrDiscard(l),
		subs:   map[int]func(model.Session){},
	}
}

// Current returns a copy of the session. The user pointer is a fresh copy.
func (s *Store) Current() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.state)
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// User returns the current user, or nil when logged out.
func (s *Store) User() *model.User {
	return s.Current().User
}

// SetAuth persists user and token, then updates the in-memory state. Subscribers have been
// notified when SetAuth returns.
func (s *Store) SetAuth(user *model.User, token string) error {
	token = strings.TrimSpace(token)
	if user == nil || token == "" {
		return ErrInvalidAuth
	}
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(TokenKey, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.kv.Set(UserKey, string(b)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.logger.Info("session set", slog.Int64("user_id", user.ID), slog.String("token", logger.TokenPrefix(token)))
	s.set(model.Session{User: user, Token: token})
	return nil
}

// ClearAuth removes both persisted values and resets the state. Calling it while already
// cleared leaves the same state.
func (s *Store) ClearAuth() error {
	err := s.kv.Remove(TokenKey, UserKey)
	s.set(model.Session{})
	if err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

// Restore loads the persisted session once at startup. It never fails: a missing value, a
// storage error or an unparsable user all leave the session absent and the persisted keys
// cleared. It reports whether a session was restored.
func (s *Store) Restore() bool {
	token, tokOK, err := s.kv.Get(TokenKey)
	if err != nil {
		s.logger.Warn("restore: read token failed", slog.String("error", err.Error()))
		s.discardPersisted()
		return false
	}
	raw, userOK, err := s.kv.Get(UserKey)
	if err != nil {
		s.logger.Warn("restore: read user failed", slog.String("error", err.Error()))
		s.discardPersisted()
		return false
	}
	token = strings.TrimSpace(token)
	if !tokOK || !userOK || token == "" {
		if tokOK || userOK {
			// Half a session is no session.
			s.discardPersisted()
		}
		return false
	}
	user, err := parseUser(raw)
	if err != nil {
		s.logger.Warn("restore: persisted user is corrupted", slog.String("error", err.Error()))
		s.discardPersisted()
		return false
	}
	// Apply directly; the values are already persisted.
	s.set(model.Session{User: user, Token: token})
	s.logger.Debug("session restored", slog.Int64("user_id", user.ID))
	return true
}

// Subscribe registers fn to be called after every state change. The returned func removes it.
func (s *Store) Subscribe(fn func(model.Session)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) set(next model.Session) {
	s.mu.Lock()
	if sameSession(s.state, next) {
		s.mu.Unlock()
		return
	}
	s.state = copySession(next)
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(model.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(copySession(next))
	}
}

func (s *Store) discardPersisted() {
	if err := s.kv.Remove(TokenKey, UserKey); err != nil {
		s.logger.Warn("restore: clearing persisted session failed", slog.String("error", err.Error()))
	}
	s.set(model.Session{})
}

func parseUser(raw string) (*model.User, error) {
	var u *model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("persisted user is null")
	}
	return u, nil
}

func copySession(s model.Session) model.Session {
	if s.User == nil {
		return model.Session{}
	}
	u := *s.User
	return model.Session{User: &u, Token: s.Token}
}

func sameSession(a, b model.Session) bool {
	if a.Token != b.Token {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == nil && b.User == nil
	}
	return *a.User == *b.User
}

// Package pages is the page collection layer: one cached collection for the signed-in user,
// plus uncached single-page lookups and the create/update/delete mutations that keep the
// collection consistent with the server.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"
	"flow-cli/internal/model"
	"flow-cli/internal/query"
)

// KeyUserPages is the single collection key: the current user's pages.
const KeyUserPages query.Key = "pages"

var (
	ErrNotFound      = errors.New("page not found")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrTitleRequired = errors.New("title is required")
)

// API is the subset of the REST binding the service needs.
type API interface {
	ListPages(ctx context.Context) ([]model.Page, error)
	GetPage(ctx context.Context, id int64) (model.Page, error)
	CreatePage(ctx context.Context, in model.PageInput) (model.Page, error)
	UpdatePage(ctx context.Context, id int64, in model.PageInput) (model.Page, error)
	DeletePage(ctx context.Context, id int64) error
}

// Session reports the signed-in user and announces changes to it.
type Session interface {
	User() *model.User
	Subscribe(fn func(model.Session)) func()
}

type Options struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

type Service struct {
	api     API
	session Session
	cache   *query.Cache[[]model.Page]
	logger  *slog.Logger
	unsub   func()
}

func New(api API, sess Session, opts Options) (*Service, error) {
	if api == nil || sess == nil {
		return nil, errors.New("pages: api and session are required")
	}
	s := &Service{api: api, session: sess, logger: logger.OrDiscard(opts.Logger)}
	c, err := query.New(query.Options[[]model.Page]{
		Fetch:     s.fetchOwned,
		Normalize: normalize,
		Clone:     slices.Clone[[]model.Page],
		Logger:    s.logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	s.cache = c
	// A different (or no) user must never see the previous user's pages.
	var lastUser atomic.Int64
	if u := sess.User(); u != nil {
		lastUser.Store(u.ID)
	}
	s.unsub = sess.Subscribe(func(next model.Session) {
		var id int64
		if next.User != nil {
			id = next.User.ID
		}
		if lastUser.Swap(id) != id {
			s.cache.Reset(KeyUserPages)
		}
	})
	return s, nil
}

// Close detaches the service from the session.
func (s *Service) Close() {
	if s.unsub != nil {
		s.unsub()
	}
}

func normalize(ps []model.Page) []model.Page {
	if ps == nil {
		return []model.Page{}
	}
	return ps
}

func (s *Service) fetchOwned(ctx context.Context, _ query.Key) ([]model.Page, error) {
	ps, err := s.api.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	var uid int64
	if u := s.session.User(); u != nil {
		uid = u.ID
	}
	return OwnedBy(ps, uid), nil
}

// OwnedBy drops pages that visibly belong to someone else. The backend scopes the collection by
// token, so this only guards against an unscoped response. Pages without an owner id are kept.
func OwnedBy(ps []model.Page, userID int64) []model.Page {
	if userID == 0 {
		return ps
	}
	out := make([]model.Page, 0, len(ps))
	for _, p := range ps {
		if p.UserID == 0 || p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

// Peek returns the cached collection without fetching.
func (s *Service) Peek() query.Entry[[]model.Page] {
	return s.cache.Peek(KeyUserPages)
}

// Fetch returns the collection, loading it when empty, stale or failed.
func (s *Service) Fetch(ctx context.Context) ([]model.Page, error) {
	return s.cache.Get(ctx, KeyUserPages)
}

// Refetch reloads the collection unconditionally.
func (s *Service) Refetch(ctx context.Context) ([]model.Page, error) {
	return s.cache.Refetch(ctx, KeyUserPages)
}

// Prefetch loads the collection in the background.
func (s *Service) Prefetch() {
	s.cache.Prefetch(KeyUserPages)
}

// Wait blocks until background loads have settled.
func (s *Service) Wait() {
	s.cache.Wait()
}

// Subscribe delivers every collection change to fn.
func (s *Service) Subscribe(fn func(query.Entry[[]model.Page])) func() {
	return s.cache.Subscribe(func(k query.Key, e query.Entry[[]model.Page]) {
		if k == KeyUserPages {
			fn(e)
		}
	})
}

// Reset empties the collection.
func (s *Service) Reset() {
	s.cache.Reset(KeyUserPages)
}

// Create validates and creates a page for the signed-in user, then reloads the collection.
func (s *Service) Create(ctx context.Context, title, content string) (model.Page, error) {
	u := s.session.User()
	if u == nil {
		return model.Page{}, ErrNotLoggedIn
	}
	if strings.TrimSpace(title) == "" {
		return model.Page{}, ErrTitleRequired
	}
	p, err := s.api.CreatePage(ctx, model.PageInput{Title: title, Content: content, UserID: u.ID})
	if err != nil {
		s.logger.Warn("create page failed", slog.String("error", err.Error()))
		return model.Page{}, fmt.Errorf("create page: %w", err)
	}
	s.logger.Info("page created", slog.Int64("page_id", p.ID))
	s.reload()
	return p, nil
}

// Update writes title and content for id, then reloads the collection.
func (s *Service) Update(ctx context.Context, id int64, title, content string) (model.Page, error) {
	p, err := s.api.UpdatePage(ctx, id, model.PageInput{Title: title, Content: content})
	if err != nil {
		s.logger.Warn("update page failed", slog.Int64("page_id", id), slog.String("error", err.Error()))
		return model.Page{}, fmt.Errorf("update page %d: %w", id, err)
	}
	s.reload()
	return p, nil
}

func (s *Service) reload() {
	s.cache.Invalidate(KeyUserPages)
	s.cache.Prefetch(KeyUserPages)
}

// Delete removes id from the cached collection immediately, then deletes it on the server.
// On failure the collection is restored exactly as it was. Either way a background refetch
// reconciles with the server.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.cache.Mutate(ctx, KeyUserPages, query.Mutation[[]model.Page]{
		Apply: func(ps []model.Page) []model.Page {
			return slices.DeleteFunc(ps, func(p model.Page) bool { return p.ID == id })
		},
		Commit: func(ctx context.Context) error {
			return s.api.DeletePage(ctx, id)
		},
	})
	if err != nil {
		s.logger.Warn("delete page failed", slog.Int64("page_id", id), slog.String("error", err.Error()))
		return fmt.Errorf("delete page %d: %w", id, err)
	}
	s.logger.Info("page deleted", slog.Int64("page_id", id))
	return nil
}

// Lookup fetches one page directly from the server. It neither reads nor fills the collection.
// Every failure is reported as ErrNotFound, wrapping the cause.
func (s *Service) Lookup(ctx context.Context, id int64) (model.Page, error) {
	p, err := s.api.GetPage(ctx, id)
	if err != nil {
		s.logger.Debug("lookup failed", slog.Int64("page_id", id), slog.String("error", err.Error()))
		return model.Page{}, &LookupError{ID: id, Err: err}
	}
	return p, nil
}

// LookupError is a failed single-page lookup. It matches ErrNotFound.
type LookupError struct {
	ID  int64
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("page %d not found: %v", e.ID, e.Err)
}

func (e *LookupError) Unwrap() []error { return []error{ErrNotFound, e.Err} }

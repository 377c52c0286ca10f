// Package fakeapi is an in-memory implementation of the notes backend REST contract.
//
// Tests use it behind httptest; `flow mock-server` serves it for local development. It adds
// hooks for counting calls, queueing failures and holding requests open.
package fakeapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flow-cli/internal/logger"
	"flow-cli/internal/model"

	"github.com/go-chi/chi/v5"
)

// Route keys accepted by Calls, FailNext and Hold.
const (
	RouteLogin      = "POST /auth/login"
	RouteSignup     = "POST /auth/signup"
	RouteListPages  = "GET /pages"
	RouteGetPage    = "GET /pages/{id}"
	RouteCreatePage = "POST /pages"
	RouteUpdatePage = "PUT /pages/{id}"
	RouteDeletePage = "DELETE /pages/{id}"
)

type userRecord struct {
	user model.User
	hash []byte
}

type failure struct {
	status  int
	message string
}

type Server struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
	// unscoped makes GET /pages return every user's pages.
	unscoped bool

	mu         sync.Mutex
	users      map[int64]*userRecord
	byEmail    map[string]int64
	pages      map[int64]model.Page
	nextUserID int64
	nextPageID int64

	calls    map[string]int
	failures map[string][]failure
	holds    map[string]chan struct{}
}

type Option func(*Server)

func WithSecret(secret []byte) Option { return func(s *Server) { s.secret = secret } }

func WithTokenTTL(d time.Duration) Option { return func(s *Server) { s.tokenTTL = d } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithUnscopedList makes the collection endpoint ignore ownership.
func WithUnscopedList() Option { return func(s *Server) { s.unscoped = true } }

func New(opts ...Option) *Server {
	s := &Server{
		secret:     []byte("flow-mock-secret"),
		tokenTTL:   24 * time.Hour,
		now:        time.Now,
		users:      map[int64]*userRecord{},
		byEmail:    map[string]int64{},
		pages:      map[int64]model.Page{},
		nextUserID: 1,
		nextPageID: 1,
		calls:      map[string]int{},
		failures:   map[string][]failure{},
		holds:      map[string]chan struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logger.OrDiscard(s.logger)
	return s
}

// Handler returns the router mounted at /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/signup", s.handleSignup)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/pages", s.handleListPages)
			r.Post("/pages", s.handleCreatePage)
			r.Get("/pages/{id}", s.handleGetPage)
			r.Put("/pages/{id}", s.handleUpdatePage)
			r.Delete("/pages/{id}", s.handleDeletePage)
		})
	})
	return r
}

// Calls reports how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next request to route answer with status and message.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, message: message})
}

// Hold blocks requests to route (after they are counted) until release is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[route] == ch {
				delete(s.holds, route)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// enter records a call and applies hooks. It returns false when a queued failure was written.
func (s *Server) enter(w http.ResponseWriter, r *http.Request, route string) bool {
	s.mu.Lock()
	s.calls[route]++
	hold := s.holds[route]
	var f *failure
	if q := s.failures[route]; len(q) > 0 {
		f = &q[0]
		s.failures[route] = q[1:]
	}
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return false
		}
	}
	if f != nil {
		writeJSON(w, f.status, map[string]any{"success": false, "message": f.message, "error": f.message})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}

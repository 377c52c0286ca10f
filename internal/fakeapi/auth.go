package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"flow-cli/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type ctxKey struct{}

// SeedUser registers a user directly and returns it.
func (s *Server) SeedUser(name, email, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.byEmail[email]; ok {
		return model.User{}, errors.New("email already exists")
	}
	u := model.User{ID: s.nextUserID, Name: name, Email: email}
	s.nextUserID++
	s.users[u.ID] = &userRecord{user: u, hash: hash}
	s.byEmail[email] = u.ID
	return u, nil
}

// IssueToken signs a token for userID.
func (s *Server) IssueToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) userFromToken(raw string) (int64, bool) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, false
	}
	s.mu.Lock()
	_, ok := s.users[id]
	s.mu.Unlock()
	return id, ok
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, ok := s.userFromToken(strings.TrimSpace(raw))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteLogin) {
		return
	}
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	s.mu.Lock()
	var rec *userRecord
	if id, ok := s.byEmail[email]; ok {
		rec = s.users[id]
	}
	s.mu.Unlock()
	if rec == nil || bcrypt.CompareHashAndPassword(rec.hash, []byte(in.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "")
		return
	}
	tok, err := s.IssueToken(rec.user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	s.logger.Info("login", slog.Int64("user_id", rec.user.ID))
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": rec.user})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteSignup) {
		return
	}
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := map[string]string{}
	if n := len(strings.TrimSpace(in.Name)); n < 3 || n > 50 {
		fields["name"] = "Name must be between 3 and 50 characters"
	}
	if !emailRE.MatchString(in.Email) {
		fields["email"] = "Email must be a valid address"
	}
	if len(in.Password) < 6 {
		fields["password"] = "Password must be at least 6 characters"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fields})
		return
	}
	u, err := s.SeedUser(strings.TrimSpace(in.Name), in.Email, in.Password)
	if err != nil {
		writeMessage(w, http.StatusConflict, "email already exists")
		return
	}
	tok, err := s.IssueToken(u.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	s.logger.Info("signup", slog.Int64("user_id", u.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"token": tok, "user": u}})
}

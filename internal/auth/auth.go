// Package auth runs the login, signup and logout flows: validate the form, call the backend,
// and record the result in the session.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"flow-cli/internal/api"
	"flow-cli/internal/logger"
	"flow-cli/internal/model"
	"flow-cli/internal/validate"
)

type API interface {
	Login(ctx context.Context, in api.LoginRequest) (api.AuthResult, error)
	Signup(ctx context.Context, in api.SignupRequest) (api.AuthResult, error)
}

type Session interface {
	SetAuth(user *model.User, token string) error
	ClearAuth() error
}

type Service struct {
	api     API
	session Session
	logger  *slog.Logger
}

func New(a API, sess Session, l *slog.Logger) *Service {
	return &Service{api: a, session: sess, logger: logger.OrDiscard(l)}
}

// Login signs in. Form and server failures are returned as *validate.FormError.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if err := validate.Login(email, password); err != nil {
		return nil, err
	}
	res, err := s.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.logger.Info("login rejected", slog.Int("status", api.StatusCode(err)))
		return nil, validate.LoginFailure(err)
	}
	if res.User == nil || strings.TrimSpace(res.Token) == "" {
		s.logger.Warn("login response missing user or token")
		return nil, &validate.FormError{General: validate.MsgWrongCredentials}
	}
	if err := s.session.SetAuth(res.User, res.Token); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("logged in", slog.Int64("user_id", res.User.ID), slog.String("token", logger.TokenPrefix(res.Token)))
	return res.User, nil
}

// Signup registers and signs in. Form and server failures are returned as *validate.FormError.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := validate.Signup(name, email, password); err != nil {
		return nil, err
	}
	res, err := s.api.Signup(ctx, api.SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		s.logger.Info("signup rejected", slog.Int("status", api.StatusCode(err)))
		return nil, validate.SignupFailure(err)
	}
	if res.User == nil || strings.TrimSpace(res.Token) == "" {
		s.logger.Warn("signup response missing user or token")
		return nil, &validate.FormError{General: validate.MsgSignupIncomplete}
	}
	if err := s.session.SetAuth(res.User, res.Token); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("signed up", slog.Int64("user_id", res.User.ID))
	return res.User, nil
}

func (s *Service) Logout() error {
	if err := s.session.ClearAuth(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

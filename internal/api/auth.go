package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"flow-cli/internal/model"
)

// AuthResult is the login/signup response. Either field may be missing on a malformed
// success response; callers decide what that means.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, in LoginRequest) (AuthResult, error) {
	b, err := c.do(ctx, http.MethodPost, "/auth/login", in)
	if err != nil {
		return AuthResult{}, err
	}
	return decodeAuth(b)
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (AuthResult, error) {
	b, err := c.do(ctx, http.MethodPost, "/auth/signup", in)
	if err != nil {
		return AuthResult{}, err
	}
	return decodeAuth(b)
}

// decodeAuth accepts both {token, user} and {data: {token, user}}.
func decodeAuth(b []byte) (AuthResult, error) {
	var out AuthResult
	if err := json.Unmarshal(unwrapData(b), &out); err != nil {
		return AuthResult{}, fmt.Errorf("decode auth response: %w", err)
	}
	return out, nil
}

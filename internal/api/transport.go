package api

import (
	"log/slog"
	"net/http"
)

// BearerTransport attaches "Authorization: Bearer <token>" to every request when the token
// source has one. Without a token the request goes out unauthenticated and the backend decides.
type BearerTransport struct {
	Base   http.RoundTripper
	Tokens TokenSource
	Logger *slog.Logger
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	token := ""
	if t.Tokens != nil {
		token = t.Tokens.Token()
	}
	if token == "" {
		if t.Logger != nil {
			t.Logger.Debug("request without token", slog.String("path", req.URL.Path))
		}
		return base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r)
}

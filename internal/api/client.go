// Package api is the HTTP binding to the notes backend REST contract (base path /api).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"flow-cli/internal/logger"
	"flow-cli/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// TokenSource supplies the current bearer token; "" means unauthenticated.
type TokenSource interface {
	Token() string
}

type Options struct {
	// BaseURL includes the /api prefix, e.g. http://localhost:8080/api.
	BaseURL string
	// HTTPClient supplies the base transport; its Transport is wrapped, never replaced.
	HTTPClient *http.Client
	Tokens     TokenSource
	// Limiter throttles outbound requests. Nil means unlimited.
	Limiter *rate.Limiter
	// Timeout is the per-request timeout. Zero means none.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics metrics.Recorder
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url is empty")
	}
	var rt http.RoundTripper = http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		rt = opts.HTTPClient.Transport
	}
	l := logger.OrDiscard(opts.Logger)
	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: &BearerTransport{Base: rt, Tokens: opts.Tokens, Logger: l},
			Timeout:   opts.Timeout,
		},
		limiter: opts.Limiter,
		logger:  l,
		metrics: metrics.OrNop(opts.Metrics),
	}, nil
}

const requestIDHeader = "X-Request-Id"

// do sends one request and returns the raw body of a 2xx response. Non-2xx responses become
// *Error. There is no retry.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(method, 0, time.Since(start))
		c.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	dur := time.Since(start)
	c.metrics.RecordRequest(method, resp.StatusCode, dur)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	c.logger.Debug("request done",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", dur),
		slog.String("request_id", reqID),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := decodeError(resp.StatusCode, b)
		e.RequestID = reqID
		return nil, e
	}
	return b, nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"flow-cli/internal/model"
)

// ListPages fetches the collection. A null or non-array data member is normalized to an empty
// slice; the result is never nil.
func (c *Client) ListPages(ctx context.Context) ([]model.Page, error) {
	b, err := c.do(ctx, http.MethodGet, "/pages", nil)
	if err != nil {
		return nil, err
	}
	env, ok := parseEnvelope(b)
	if !ok {
		return nil, fmt.Errorf("decode pages response: invalid json")
	}
	if env.Success != nil && !*env.Success {
		return nil, &Error{StatusCode: http.StatusOK, Message: orDefault(env.failure(), "Failed to fetch pages")}
	}
	return NormalizePages(env.Data)
}

// NormalizePages decodes raw as a page list, mapping null and non-array values to an empty slice.
func NormalizePages(raw json.RawMessage) ([]model.Page, error) {
	if isNull(raw) || !isArray(raw) {
		return []model.Page{}, nil
	}
	var pages []model.Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	if pages == nil {
		pages = []model.Page{}
	}
	return pages, nil
}

func (c *Client) GetPage(ctx context.Context, id int64) (model.Page, error) {
	b, err := c.do(ctx, http.MethodGet, pagePath(id), nil)
	if err != nil {
		return model.Page{}, err
	}
	env, ok := parseEnvelope(b)
	if !ok {
		return model.Page{}, fmt.Errorf("decode page response: invalid json")
	}
	if env.Success != nil && !*env.Success {
		return model.Page{}, &Error{StatusCode: http.StatusOK, Message: orDefault(env.failure(), "Failed to fetch page")}
	}
	raw := env.Data
	if env.Success == nil && isNull(raw) {
		// Bare page body.
		raw = b
	}
	if isNull(raw) {
		return model.Page{}, &Error{StatusCode: http.StatusNotFound, Message: "Page not found"}
	}
	var p model.Page
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return p, nil
}

func (c *Client) CreatePage(ctx context.Context, in model.PageInput) (model.Page, error) {
	b, err := c.do(ctx, http.MethodPost, "/pages", in)
	if err != nil {
		return model.Page{}, err
	}
	return decodePage(b)
}

func (c *Client) UpdatePage(ctx context.Context, id int64, in model.PageInput) (model.Page, error) {
	// The server ignores userId on update.
	in.UserID = 0
	b, err := c.do(ctx, http.MethodPut, pagePath(id), in)
	if err != nil {
		return model.Page{}, err
	}
	return decodePage(b)
}

func (c *Client) DeletePage(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, pagePath(id), nil)
	return err
}

func decodePage(b []byte) (model.Page, error) {
	var p model.Page
	if len(b) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(unwrapData(b), &p); err != nil {
		return model.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return p, nil
}

func pagePath(id int64) string {
	return fmt.Sprintf("/pages/%d", id)
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error is a non-2xx response, or a 2xx response whose envelope reports success=false.
type Error struct {
	StatusCode int
	// Message is the payload's "message" (or "error") text, if any.
	Message string
	// Fields maps form field name to message, from the payload's "errors" object.
	Fields    map[string]string
	RequestID string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = strings.Join(parts, "; ")
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, msg)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *Error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

type errorPayload struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func decodeError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return e
	}
	e.Message = strings.TrimSpace(p.Message)
	if e.Message == "" {
		e.Message = strings.TrimSpace(p.Error)
	}
	if len(p.Errors) > 0 {
		e.Fields = map[string]string{}
		for field, raw := range p.Errors {
			if msg := fieldMessage(raw); msg != "" {
				e.Fields[field] = msg
			}
		}
		if len(e.Fields) == 0 {
			e.Fields = nil
		}
	}
	return e
}

// fieldMessage accepts "msg" or ["msg", ...].
func fieldMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var xs []string
	if err := json.Unmarshal(raw, &xs); err == nil && len(xs) > 0 {
		return strings.TrimSpace(xs[0])
	}
	return ""
}

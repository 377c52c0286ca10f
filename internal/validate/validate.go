// Package validate checks auth forms before they are sent and turns server failures into
// per-field messages.
package validate

import (
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"flow-cli/internal/api"
	"flow-cli/internal/pages"
)

const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPassword = "password"
)

const (
	MsgLoginRequired    = "Please enter email and password"
	MsgInvalidEmail     = "Invalid email format"
	MsgPasswordShort    = "Password must be at least 6 characters"
	MsgWrongCredentials = "Wrong email or password"
	MsgSomethingWrong   = "Something went wrong. Please try again."
	MsgNameRequired     = "Name is required"
	MsgNameShort        = "Name must be at least 2 characters"
	MsgEmailRequired    = "Email is required"
	MsgPasswordRequired = "Password is required"
	MsgEmailRegistered  = "This email is already registered"
	MsgSignupFailed     = "Signup failed. Please try again."
	MsgSignupIncomplete = "Signup succeeded but no user/token returned"
	MsgNotLoggedIn      = "You must be logged in"
	MsgTitleRequired    = "Please enter a title"
)

const (
	minPasswordLen = 6
	minNameLen     = 2
)

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FormError carries messages for individual fields and/or one general message.
type FormError struct {
	Fields  map[string]string
	General string
}

func (e *FormError) Error() string {
	if e.General != "" && len(e.Fields) == 0 {
		return e.General
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	if e.General != "" {
		parts = append(parts, e.General)
	}
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Field returns the message for name, or "".
func (e *FormError) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}

// Without returns a copy with field's message and the general message removed, which is what
// editing a field does. It returns nil when nothing is left.
func (e *FormError) Without(field string) *FormError {
	if e == nil {
		return nil
	}
	out := &FormError{}
	for k, v := range e.Fields {
		if k != field {
			if out.Fields == nil {
				out.Fields = map[string]string{}
			}
			out.Fields[k] = v
		}
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

func general(msg string) *FormError { return &FormError{General: msg} }

// IsEmail reports whether s looks like an address.
func IsEmail(s string) bool { return emailRE.MatchString(s) }

// Login checks the login form; the first failing rule wins.
func Login(email, password string) error {
	switch {
	case strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "":
		return general(MsgLoginRequired)
	case !IsEmail(email):
		return general(MsgInvalidEmail)
	case len(password) < minPasswordLen:
		return general(MsgPasswordShort)
	}
	return nil
}

// Signup checks every field of the signup form and reports all failures together.
func Signup(name, email, password string) error {
	fields := map[string]string{}
	switch n := strings.TrimSpace(name); {
	case n == "":
		fields[FieldName] = MsgNameRequired
	case len([]rune(n)) < minNameLen:
		fields[FieldName] = MsgNameShort
	}
	switch {
	case strings.TrimSpace(email) == "":
		fields[FieldEmail] = MsgEmailRequired
	case !IsEmail(email):
		fields[FieldEmail] = MsgInvalidEmail
	}
	switch {
	case password == "":
		fields[FieldPassword] = MsgPasswordRequired
	case len(password) < minPasswordLen:
		fields[FieldPassword] = MsgPasswordShort
	}
	if len(fields) == 0 {
		return nil
	}
	return &FormError{Fields: fields}
}

// LoginFailure maps a failed login call to what the form shows. A 401 always reads as wrong
// credentials; other server messages are shown as sent.
func LoginFailure(err error) *FormError {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return general(MsgSomethingWrong)
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return general(MsgWrongCredentials)
	}
	if apiErr.Message != "" {
		return general(apiErr.Message)
	}
	return general(MsgSomethingWrong)
}

// SignupFailure routes a failed signup call to a field. A structured field mapping is used as
// is; otherwise the message is matched on keywords.
func SignupFailure(err error) *FormError {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return general(MsgSignupFailed)
	}
	if len(apiErr.Fields) > 0 {
		fields := make(map[string]string, len(apiErr.Fields))
		for k, v := range apiErr.Fields {
			fields[strings.ToLower(k)] = v
		}
		return &FormError{Fields: fields}
	}
	if apiErr.Message == "" {
		return general(MsgSignupFailed)
	}
	return RouteMessage(apiErr.Message)
}

// PageFailure returns what the user sees for a page input rejected before any request, or ""
// when err is not one of those.
func PageFailure(err error) string {
	switch {
	case errors.Is(err, pages.ErrNotLoggedIn):
		return MsgNotLoggedIn
	case errors.Is(err, pages.ErrTitleRequired):
		return MsgTitleRequired
	}
	return ""
}

// RouteMessage picks the field a free-text server message is about.
func RouteMessage(msg string) *FormError {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "name"):
		return &FormError{Fields: map[string]string{FieldName: msg}}
	case strings.Contains(lower, "email"):
		if strings.Contains(lower, "already") || strings.Contains(lower, "exists") {
			return &FormError{Fields: map[string]string{FieldEmail: MsgEmailRegistered}}
		}
		return &FormError{Fields: map[string]string{FieldEmail: msg}}
	case strings.Contains(lower, "password"):
		return &FormError{Fields: map[string]string{FieldPassword: msg}}
	default:
		return general(msg)
	}
}

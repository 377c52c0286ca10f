package model

import "time"

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Page struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	UserID    int64      `json:"userId"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// DisplayTitle returns the title shown in lists, falling back for blank titles.
func (p Page) DisplayTitle() string {
	if p.Title == "" {
		return "Untitled"
	}
	return p.Title
}

// Session is the authenticated user plus bearer token.
// User and Token are either both set or both empty.
type Session struct {
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

// PageInput is the body of create/update calls.
type PageInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  int64  `json:"userId,omitempty"`
}

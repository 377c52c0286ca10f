package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"flow-cli/internal/model"

	"github.com/go-chi/chi/v5"
)

// SeedPage stores a page owned by userID and returns it.
func (s *Server) SeedPage(userID int64, title, content string) model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPageLocked(userID, title, content)
}

func (s *Server) insertPageLocked(userID int64, title, content string) model.Page {
	now := s.now().UTC()
	p := model.Page{ID: s.nextPageID, Title: title, Content: content, UserID: userID, CreatedAt: &now, UpdatedAt: &now}
	s.nextPageID++
	s.pages[p.ID] = p
	return p
}

// Pages returns the stored pages for userID in id order. Zero returns all pages.
func (s *Server) Pages(userID int64) []model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesLocked(userID)
}

func (s *Server) pagesLocked(userID int64) []model.Page {
	out := make([]model.Page, 0, len(s.pages))
	for _, p := range s.pages {
		if userID == 0 || p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) ownedPage(w http.ResponseWriter, r *http.Request) (model.Page, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid page id"})
		return model.Page{}, false
	}
	s.mu.Lock()
	p, ok := s.pages[id]
	s.mu.Unlock()
	if !ok || p.UserID != userID(r) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "page not found"})
		return model.Page{}, false
	}
	return p, true
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteListPages) {
		return
	}
	owner := userID(r)
	if s.unscoped {
		owner = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.Pages(owner)})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteGetPage) {
		return
	}
	p, ok := s.ownedPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteCreatePage) {
		return
	}
	var in model.PageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"title": "Title is required"}})
		return
	}
	s.mu.Lock()
	p := s.insertPageLocked(userID(r), in.Title, in.Content)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteUpdatePage) {
		return
	}
	p, ok := s.ownedPage(w, r)
	if !ok {
		return
	}
	var in model.PageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := s.now().UTC()
	p.Title = in.Title
	p.Content = in.Content
	p.UpdatedAt = &now
	s.mu.Lock()
	s.pages[p.ID] = p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if !s.enter(w, r, RouteDeletePage) {
		return
	}
	p, ok := s.ownedPage(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.pages, p.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "page deleted"})
}

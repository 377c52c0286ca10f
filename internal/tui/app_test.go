package tui

import (
	"context"
	"net/http"
	"testing"
	"time"

	"flow-cli/internal/autosave"
	"flow-cli/internal/fakeapi"
	"flow-cli/internal/query"
	"flow-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLogin_SuccessShowsDashboard(t *testing.T) {
	h := newHarness(t, false)
	m := h.model(t)
	if m.view != viewLogin {
		t.Fatalf("expected login view, got %v", m.view)
	}

	m = typeInto(t, m, "ada@example.com")
	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, "secret1")
	m, cmd := update(t, m, key(tea.KeyEnter))
	if !m.login.busy {
		t.Fatalf("expected form to be busy while signing in")
	}
	m = runCmd(t, m, cmd)

	if m.view != viewDashboard {
		t.Fatalf("expected dashboard after login, got %v", m.view)
	}
	if !h.sess.Current().Authenticated() {
		t.Fatalf("expected session to be authenticated")
	}
	m = h.settle(t, m)
	mustContain(t, m.View(), "Welcome back, Ada", "You have 3 pages in your workspace.", "Recent Pages", pageLabel(h.pages[2]))
}

func TestLogin_ErrorClearsWhenFieldEdited(t *testing.T) {
	h := newHarness(t, false)
	m := h.model(t)

	m = typeInto(t, m, "not-an-email")
	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, "secret1")
	m, cmd := update(t, m, key(tea.KeyEnter))
	m = runCmd(t, m, cmd)
	mustContain(t, m.View(), "Invalid email format")
	if got := h.fake.Calls(fakeapi.RouteLogin); got != 0 {
		t.Fatalf("validation failure should not reach the server, got %d calls", got)
	}

	m, _ = update(t, m, key(tea.KeyShiftTab))
	m = typeInto(t, m, "x")
	mustNotContain(t, m.View(), "Invalid email format")
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t, false)
	m := h.model(t)

	m = typeInto(t, m, "ada@example.com")
	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, "wrong-password")
	m, cmd := update(t, m, key(tea.KeyEnter))
	m = runCmd(t, m, cmd)

	if m.view != viewLogin {
		t.Fatalf("expected to stay on login, got %v", m.view)
	}
	mustContain(t, m.View(), "Wrong email or password")
}

func TestSignup_DuplicateEmailShownOnEmailField(t *testing.T) {
	h := newHarness(t, false)
	m := h.model(t)

	m, _ = update(t, m, key(tea.KeyCtrlT))
	if m.view != viewSignup {
		t.Fatalf("expected signup view, got %v", m.view)
	}
	m = typeInto(t, m, "Ada Again")
	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, "ada@example.com")
	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, "secret1")
	m, cmd := update(t, m, key(tea.KeyEnter))
	m = runCmd(t, m, cmd)

	if got := m.signup.err.Field("email"); got != "This email is already registered" {
		t.Fatalf("email error = %q", got)
	}
	mustContain(t, m.View(), "This email is already registered")
}

func TestDashboard_OpenRecentPageAndAutosave(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	if m.view != viewDashboard {
		t.Fatalf("expected dashboard, got %v", m.view)
	}

	// "1" is the newest page.
	m, cmd := update(t, m, keyRunes("1"))
	if m.view != viewPage || !m.detail.loading {
		t.Fatalf("expected loading page view")
	}
	mustContain(t, m.View(), "Loading page...")
	m = runCmd(t, m, cmd)
	if m.detail.saver == nil {
		t.Fatalf("expected page to be loaded")
	}
	if got := m.detail.title.Value(); got != "C" {
		t.Fatalf("title = %q", got)
	}

	m = typeInto(t, m, " edited")
	if !m.detail.saver.Dirty() {
		t.Fatalf("expected unsaved edit")
	}
	waitFor(t, func() bool { return h.fake.Calls(fakeapi.RouteUpdatePage) == 1 })
	saver := m.detail.saver
	waitFor(t, func() bool { return !saver.Dirty() && saver.Status() != autosave.StatusSaving })

	ps := h.fake.Pages(h.user.ID)
	if ps[2].Title != "C edited" || ps[2].Content != "content of C" {
		t.Fatalf("server page = %+v", ps[2])
	}

	m, closeCmd := update(t, m, key(tea.KeyEsc))
	if m.view != viewDashboard {
		t.Fatalf("expected back to dashboard, got %v", m.view)
	}
	if closeCmd != nil {
		closeCmd()
	}
}

func TestPage_ExplicitSaveFlashes(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m.opts.AutosaveDelay = time.Hour
	open := m.openPage(h.pages[0].ID)
	m = runCmd(t, m, open)

	m, _ = update(t, m, key(tea.KeyTab))
	m = typeInto(t, m, " more")
	m, cmd := update(t, m, key(tea.KeyCtrlS))
	m = runCmd(t, m, cmd)
	mustContain(t, m.View(), "Page updated!")
	if got := h.fake.Calls(fakeapi.RouteUpdatePage); got != 1 {
		t.Fatalf("expected 1 update call, got %d", got)
	}
	if got := h.fake.Pages(h.user.ID)[0].Content; got != "content of A more" {
		t.Fatalf("content = %q", got)
	}
}

func TestPage_SaveFailureFlashes(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m.opts.AutosaveDelay = time.Hour
	open := m.openPage(h.pages[0].ID)
	m = runCmd(t, m, open)

	h.fake.FailNext(fakeapi.RouteUpdatePage, http.StatusInternalServerError, "db down")
	m = typeInto(t, m, "!")
	m, cmd := update(t, m, key(tea.KeyCtrlS))
	m = runCmd(t, m, cmd)
	mustContain(t, m.View(), "Failed to update", "Failed to save")
}

func TestPage_NotFound(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	open := m.openPage(999)
	m = runCmd(t, m, open)
	mustContain(t, m.View(), "Page not found.")

	m, _ = update(t, m, key(tea.KeyEsc))
	if m.view != viewDashboard {
		t.Fatalf("expected dashboard, got %v", m.view)
	}
}

func TestPages_DeleteFailureRollsBack(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m, _ = update(t, m, keyRunes("p"))
	if m.view != viewPages {
		t.Fatalf("expected pages view, got %v", m.view)
	}

	h.fake.FailNext(fakeapi.RouteDeletePage, http.StatusInternalServerError, "boom")
	m, _ = update(t, m, keyRunes("d"))
	if m.modal != modalConfirmDelete {
		t.Fatalf("expected delete confirmation")
	}
	mustContain(t, m.View(), "Delete Page?", "This action cannot be undone.")

	m, cmd := update(t, m, keyRunes("y"))
	if m.modal != modalNone {
		t.Fatalf("expected modal to close")
	}
	m = runCmd(t, m, cmd)
	mustContain(t, m.View(), "Error deleting page")

	m = h.settle(t, m)
	if got := len(m.pagesList.Items()); got != 3 {
		t.Fatalf("expected all 3 pages back, got %d", got)
	}
}

func TestPages_DeleteCancelKeepsPage(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m, _ = update(t, m, keyRunes("p"))
	m, _ = update(t, m, keyRunes("d"))
	// Cancel has focus by default.
	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil || m.modal != modalNone {
		t.Fatalf("expected cancel without a command")
	}
	if got := h.fake.Calls(fakeapi.RouteDeletePage); got != 0 {
		t.Fatalf("expected no delete call, got %d", got)
	}
}

func TestPage_DeleteFromDetailLeaves(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m, _ = update(t, m, keyRunes("p"))
	open := m.openPage(h.pages[1].ID)
	m = runCmd(t, m, open)

	m, _ = update(t, m, key(tea.KeyCtrlD))
	m, _ = update(t, m, key(tea.KeyTab))
	m, cmd := update(t, m, key(tea.KeyEnter))
	if m.view != viewPages {
		t.Fatalf("expected to return to pages, got %v", m.view)
	}
	if m.detail.saver != nil {
		t.Fatalf("expected editor to be dropped")
	}
	m = runCmd(t, m, cmd)
	m = h.settle(t, m)
	if got := len(m.pagesList.Items()); got != 2 {
		t.Fatalf("expected 2 pages, got %d", got)
	}
	for _, it := range m.pagesList.Items() {
		if it.(pageItem).page.ID == h.pages[1].ID {
			t.Fatalf("deleted page still listed")
		}
	}
}

func TestNewPageModal(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)

	m, _ = update(t, m, keyRunes("n"))
	if m.modal != modalNewPage {
		t.Fatalf("expected new page modal")
	}
	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil {
		t.Fatalf("blank title should not submit")
	}
	mustContain(t, m.View(), "Please enter a title")

	m = typeInto(t, m, "Groceries")
	mustNotContain(t, m.View(), "Please enter a title")
	m, cmd = update(t, m, key(tea.KeyEnter))
	m = runCmd(t, m, cmd)
	if m.modal != modalNone {
		t.Fatalf("expected modal to close")
	}
	mustContain(t, m.View(), "Page created successfully!")

	m = h.settle(t, m)
	if got := m.summary().Total; got != 4 {
		t.Fatalf("expected 4 pages after create, got %d", got)
	}
}

func TestNewPageModal_EscCancels(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m, _ = update(t, m, keyRunes("n"))
	m = typeInto(t, m, "Draft")
	m, _ = update(t, m, key(tea.KeyEsc))
	if m.modal != modalNone || m.view != viewDashboard {
		t.Fatalf("expected modal closed on dashboard")
	}
	if got := h.fake.Calls(fakeapi.RouteCreatePage); got != 0 {
		t.Fatalf("expected no create call, got %d", got)
	}
}

func TestDashboard_LoadingErrorAndRetry(t *testing.T) {
	h := newHarness(t, true)
	h.fake.FailNext(fakeapi.RouteListPages, http.StatusInternalServerError, "backend down")
	m := h.model(t)
	mustContain(t, m.View(), "Loading pages...")

	if _, err := h.svc.Fetch(t.Context()); err == nil {
		t.Fatalf("expected fetch to fail")
	}
	m, _ = update(t, m, pagesChangedMsg{})
	mustContain(t, m.View(), "backend down", "r: retry")

	m, cmd := update(t, m, keyRunes("r"))
	_ = runCmd(t, m, cmd)
	m = h.settle(t, m)
	mustContain(t, m.View(), "You have 3 pages in your workspace.")
}

func TestLogout_ResetsCollection(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)

	m, _ = update(t, m, keyRunes("L"))
	if m.view != viewLogin {
		t.Fatalf("expected login view, got %v", m.view)
	}
	if h.sess.Current().Authenticated() {
		t.Fatalf("expected session cleared")
	}
	m = h.settle(t, m)
	if m.pagesEntry.Status != query.StatusEmpty || len(m.pagesList.Items()) != 0 {
		t.Fatalf("expected empty collection after logout, got %v with %d items", m.pagesEntry.Status, len(m.pagesList.Items()))
	}
}

func TestRestoresLastOpenedPage(t *testing.T) {
	h := newHarness(t, true)
	id := h.pages[1].ID
	if err := h.store.SaveTUIState(&store.TUIState{View: "page", OpenPageID: id, ReturnView: "pages"}); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}

	m := h.model(t)
	if m.view != viewPage || m.detail.id != id || m.returnView != viewPages {
		t.Fatalf("expected restored page view, got view=%v id=%d return=%v", m.view, m.detail.id, m.returnView)
	}
	m = runCmd(t, m, m.loadPageCmd(id))
	if got := m.detail.title.Value(); got != "B" {
		t.Fatalf("title = %q", got)
	}

	m, _ = update(t, m, key(tea.KeyEsc))
	if m.view != viewPages {
		t.Fatalf("expected pages view, got %v", m.view)
	}
	st, err := h.store.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st.View != "pages" {
		t.Fatalf("persisted view = %q", st.View)
	}
}

func TestLoggedOutIgnoresSavedState(t *testing.T) {
	h := newHarness(t, false)
	if err := h.store.SaveTUIState(&store.TUIState{View: "pages"}); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}
	m := h.model(t)
	if m.view != viewLogin {
		t.Fatalf("expected login, got %v", m.view)
	}
}

func TestStaleLoadIsIgnored(t *testing.T) {
	h := newHarness(t, true)
	m := h.loaded(t)
	m.view = viewPage
	m.detail = loadingDetail(h.pages[1].ID)

	p, err := h.svc.Lookup(context.Background(), h.pages[0].ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	m, _ = update(t, m, pageLoadedMsg{id: p.ID, page: p})
	if !m.detail.loading || m.detail.saver != nil {
		t.Fatalf("expected load for another page to be ignored")
	}
}

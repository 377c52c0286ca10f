package tui

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"flow-cli/internal/api"
	"flow-cli/internal/auth"
	"flow-cli/internal/fakeapi"
	"flow-cli/internal/model"
	"flow-cli/internal/pages"
	"flow-cli/internal/session"
	"flow-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type harness struct {
	fake  *fakeapi.Server
	sess  *session.Store
	svc   *pages.Service
	auth  *auth.Service
	store store.Store
	user  model.User
	pages []model.Page
}

func newHarness(t *testing.T, loggedIn bool) *harness {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	u, err := fake.SeedUser("Ada", "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	h := &harness{fake: fake, user: u, store: store.Store{Dir: t.TempDir()}}
	for _, title := range []string{"A", "B", "C"} {
		h.pages = append(h.pages, fake.SeedPage(u.ID, title, "content of "+title))
	}

	h.sess = session.New(store.NewMemory(), nil)
	if loggedIn {
		tok, err := fake.IssueToken(u.ID)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		if err := h.sess.SetAuth(&u, tok); err != nil {
			t.Fatalf("SetAuth: %v", err)
		}
	}
	client, err := api.New(api.Options{BaseURL: srv.URL + "/api", Tokens: h.sess})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	h.svc, err = pages.New(client, h.sess, pages.Options{})
	if err != nil {
		t.Fatalf("pages.New: %v", err)
	}
	h.auth = auth.New(client, h.sess, nil)
	t.Cleanup(func() {
		h.svc.Wait()
		h.svc.Close()
	})
	return h
}

func (h *harness) model(t *testing.T) appModel {
	t.Helper()
	m := newAppModel(Options{
		Pages:         h.svc,
		Auth:          h.auth,
		Session:       h.sess,
		Store:         h.store,
		AutosaveDelay: 20 * time.Millisecond,
		SavedDisplay:  20 * time.Millisecond,
	})
	t.Cleanup(func() { m.shutdown(context.Background()) })
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// loaded returns a model whose collection has been fetched.
func (h *harness) loaded(t *testing.T) appModel {
	t.Helper()
	if _, err := h.svc.Fetch(t.Context()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	m := h.model(t)
	m, _ = update(t, m, pagesChangedMsg{})
	return m
}

func update(t *testing.T, m appModel, msg tea.Msg) (appModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	am, ok := next.(appModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return am, cmd
}

// runCmd executes cmd and feeds what it produces back into the model. Commands returned by
// those updates are not executed.
func runCmd(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if sub := c(); sub != nil {
				m, _ = update(t, m, sub)
			}
		}
		return m
	}
	if msg != nil {
		m, _ = update(t, m, msg)
	}
	return m
}

// settle waits for background collection loads and applies the resulting change.
func (h *harness) settle(t *testing.T, m appModel) appModel {
	t.Helper()
	h.svc.Wait()
	m, _ = update(t, m, pagesChangedMsg{})
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func typeInto(t *testing.T, m appModel, s string) appModel {
	t.Helper()
	m, _ = update(t, m, keyRunes(s))
	return m
}

func mustContain(t *testing.T, view string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(view, w) {
			t.Fatalf("view missing %q:\n%s", w, view)
		}
	}
}

func mustNotContain(t *testing.T, view string, unwanted ...string) {
	t.Helper()
	for _, w := range unwanted {
		if strings.Contains(view, w) {
			t.Fatalf("view unexpectedly contains %q:\n%s", w, view)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

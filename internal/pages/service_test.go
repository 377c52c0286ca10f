package pages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"flow-cli/internal/api"
	"flow-cli/internal/fakeapi"
	"flow-cli/internal/model"
	"flow-cli/internal/query"
	"flow-cli/internal/session"
	"flow-cli/internal/store"
)

type harness struct {
	svc  *Service
	fake *fakeapi.Server
	sess *session.Store
	user model.User
	url  string
}

func newHarness(t *testing.T, opts ...fakeapi.Option) *harness {
	t.Helper()
	fake := fakeapi.New(opts...)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	u, err := fake.SeedUser("Ada", "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	tok, err := fake.IssueToken(u.ID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	sess := session.New(store.NewMemory(), nil)
	if err := sess.SetAuth(&u, tok); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}
	client, err := api.New(api.Options{BaseURL: srv.URL + "/api", Tokens: sess})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	svc, err := New(client, sess, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		svc.Wait()
		svc.Close()
	})
	return &harness{svc: svc, fake: fake, sess: sess, user: u, url: srv.URL}
}

func titles(ps []model.Page) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Title)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFetch_ConcurrentCallersShareOneRequest(t *testing.T) {
	h := newHarness(t)
	h.fake.SeedPage(h.user.ID, "A", "")
	h.fake.SeedPage(h.user.ID, "B", "")

	release := h.fake.Hold(fakeapi.RouteListPages)
	var wg sync.WaitGroup
	got := make([][]model.Page, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], _ = h.svc.Fetch(context.Background())
		}()
	}
	waitFor(t, "list request", func() bool { return h.fake.Calls(fakeapi.RouteListPages) == 1 })
	release()
	wg.Wait()

	if n := h.fake.Calls(fakeapi.RouteListPages); n != 1 {
		t.Fatalf("list requests = %d, want 1", n)
	}
	for i := range got {
		if !equalStrings(titles(got[i]), []string{"A", "B"}) {
			t.Fatalf("caller %d saw %v", i, titles(got[i]))
		}
	}
}

func TestFetch_EmptyCollectionIsNotNil(t *testing.T) {
	h := newHarness(t)
	ps, err := h.svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ps == nil || len(ps) != 0 {
		t.Fatalf("pages = %#v", ps)
	}
}

func TestFetch_ErrorState(t *testing.T) {
	h := newHarness(t)
	h.fake.FailNext(fakeapi.RouteListPages, http.StatusInternalServerError, "db down")
	if _, err := h.svc.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if e := h.svc.Peek(); e.Status != query.StatusError {
		t.Fatalf("status = %v", e.Status)
	}
	if _, err := h.svc.Fetch(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e := h.svc.Peek(); e.Status != query.StatusReady {
		t.Fatalf("status after retry = %v", e.Status)
	}
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.SeedPage(h.user.ID, "A", "")
	b := h.fake.SeedPage(h.user.ID, "B", "")
	h.fake.SeedPage(h.user.ID, "C", "")
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	h.fake.FailNext(fakeapi.RouteDeletePage, http.StatusInternalServerError, "boom")
	release := h.fake.Hold(fakeapi.RouteDeletePage)
	errc := make(chan error, 1)
	go func() { errc <- h.svc.Delete(ctx, b.ID) }()

	waitFor(t, "delete request", func() bool { return h.fake.Calls(fakeapi.RouteDeletePage) == 1 })
	if got := titles(h.svc.Peek().Data); !equalStrings(got, []string{"A", "C"}) {
		t.Fatalf("optimistic = %v, want [A C]", got)
	}
	release()

	err := <-errc
	if err == nil || api.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("Delete err = %v", err)
	}
	if got := titles(h.svc.Peek().Data); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("after rollback = %v, want [A B C]", got)
	}
	h.svc.Wait()
	e := h.svc.Peek()
	if e.Status != query.StatusReady || !equalStrings(titles(e.Data), []string{"A", "B", "C"}) {
		t.Fatalf("after reconcile = %+v", e)
	}
}

func TestDelete_SuccessRefetches(t *testing.T) {
	h := newHarness(t)
	h.fake.SeedPage(h.user.ID, "A", "")
	b := h.fake.SeedPage(h.user.ID, "B", "")
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	before := h.fake.Calls(fakeapi.RouteListPages)
	if err := h.svc.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	h.svc.Wait()
	if got := h.fake.Calls(fakeapi.RouteListPages); got != before+1 {
		t.Fatalf("list requests = %d, want %d", got, before+1)
	}
	if got := titles(h.svc.Peek().Data); !equalStrings(got, []string{"A"}) {
		t.Fatalf("after delete = %v", got)
	}
}

func TestCreate_ValidatesAndRefetches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.Create(ctx, "   ", "x"); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title err = %v", err)
	}
	if h.fake.Calls(fakeapi.RouteCreatePage) != 0 {
		t.Fatalf("validation failure reached the server")
	}
	if _, err := h.svc.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	p, err := h.svc.Create(ctx, "Groceries", "milk")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.UserID != h.user.ID {
		t.Fatalf("created page owner = %d", p.UserID)
	}
	h.svc.Wait()
	if got := titles(h.svc.Peek().Data); !equalStrings(got, []string{"Groceries"}) {
		t.Fatalf("collection = %v", got)
	}
}

func TestCreate_RequiresUser(t *testing.T) {
	h := newHarness(t)
	if err := h.sess.ClearAuth(); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	if _, err := h.svc.Create(context.Background(), "T", ""); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdate_Refetches(t *testing.T) {
	h := newHarness(t)
	p := h.fake.SeedPage(h.user.ID, "Old", "")
	ctx := context.Background()
	if _, err := h.svc.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := h.svc.Update(ctx, p.ID, "New", "body"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	h.svc.Wait()
	if got := titles(h.svc.Peek().Data); !equalStrings(got, []string{"New"}) {
		t.Fatalf("collection = %v", got)
	}
}

func TestLookup(t *testing.T) {
	h := newHarness(t)
	p := h.fake.SeedPage(h.user.ID, "Solo", "content")
	ctx := context.Background()

	got, err := h.svc.Lookup(ctx, p.ID)
	if err != nil || got.Content != "content" {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}
	if st := h.svc.Peek().Status; st != query.StatusEmpty {
		t.Fatalf("lookup touched the collection: %v", st)
	}

	_, err = h.svc.Lookup(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing page err = %v", err)
	}
	if api.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected wrapped 404, got %v", err)
	}

	h.fake.FailNext(fakeapi.RouteGetPage, http.StatusBadGateway, "upstream")
	if _, err := h.svc.Lookup(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("server failure err = %v", err)
	}
}

func TestLogout_ResetsCollection(t *testing.T) {
	h := newHarness(t)
	h.fake.SeedPage(h.user.ID, "Private", "")
	if _, err := h.svc.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := h.sess.ClearAuth(); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	e := h.svc.Peek()
	if e.Status != query.StatusEmpty || len(e.Data) != 0 {
		t.Fatalf("entry after logout = %+v", e)
	}
}

func TestFetch_FiltersUnscopedResponse(t *testing.T) {
	h := newHarness(t, fakeapi.WithUnscopedList())
	other, _ := h.fake.SeedUser("Bob", "bob@example.com", "secret2")
	h.fake.SeedPage(h.user.ID, "Mine", "")
	h.fake.SeedPage(other.ID, "Theirs", "")
	ps, err := h.svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := titles(ps); !equalStrings(got, []string{"Mine"}) {
		t.Fatalf("pages = %v", got)
	}
}

func TestOwnedBy_KeepsUnownedPages(t *testing.T) {
	ps := []model.Page{{ID: 1, UserID: 1}, {ID: 2, UserID: 2}, {ID: 3}}
	got := OwnedBy(ps, 1)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("OwnedBy = %+v", got)
	}
	if len(OwnedBy(ps, 0)) != 3 {
		t.Fatalf("expected no filtering without a user")
	}
}

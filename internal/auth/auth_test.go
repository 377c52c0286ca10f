package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flow-cli/internal/api"
	"flow-cli/internal/fakeapi"
	"flow-cli/internal/model"
	"flow-cli/internal/session"
	"flow-cli/internal/store"
	"flow-cli/internal/validate"
)

func newService(t *testing.T) (*Service, *fakeapi.Server, *session.Store) {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	sess := session.New(store.NewMemory(), nil)
	client, err := api.New(api.Options{BaseURL: srv.URL + "/api", Tokens: sess})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return New(client, sess, nil), fake, sess
}

func formError(t *testing.T, err error) *validate.FormError {
	t.Helper()
	var fe *validate.FormError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *validate.FormError, got %T %v", err, err)
	}
	return fe
}

func TestLogin_Success(t *testing.T) {
	svc, fake, sess := newService(t)
	if _, err := fake.SeedUser("Ada", "ada@example.com", "secret1"); err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	u, err := svc.Login(context.Background(), " ada@example.com ", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Name != "Ada" {
		t.Fatalf("user = %+v", u)
	}
	if cur := sess.Current(); !cur.Authenticated() || cur.User.Email != "ada@example.com" {
		t.Fatalf("session = %+v", cur)
	}
}

func TestLogin_ValidationBlocksRequest(t *testing.T) {
	svc, fake, _ := newService(t)
	fe := formError(t, func() error { _, err := svc.Login(context.Background(), "ada", "secret1"); return err }())
	if fe.General != validate.MsgInvalidEmail {
		t.Fatalf("general = %q", fe.General)
	}
	if fake.Calls(fakeapi.RouteLogin) != 0 {
		t.Fatalf("invalid form reached the server")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, fake, sess := newService(t)
	_, _ = fake.SeedUser("Ada", "ada@example.com", "secret1")
	_, err := svc.Login(context.Background(), "ada@example.com", "wrong-pass")
	if fe := formError(t, err); fe.General != validate.MsgWrongCredentials {
		t.Fatalf("general = %q", fe.General)
	}
	if sess.Current().Authenticated() {
		t.Fatalf("session set after failed login")
	}
}

type stubAPI struct {
	res api.AuthResult
	err error
}

func (s stubAPI) Login(context.Context, api.LoginRequest) (api.AuthResult, error)   { return s.res, s.err }
func (s stubAPI) Signup(context.Context, api.SignupRequest) (api.AuthResult, error) { return s.res, s.err }

func TestIncompleteSuccessResponses(t *testing.T) {
	sess := session.New(store.NewMemory(), nil)
	ctx := context.Background()
	for _, res := range []api.AuthResult{{Token: "t"}, {User: &model.User{ID: 1}}} {
		svc := New(stubAPI{res: res}, sess, nil)
		_, err := svc.Login(ctx, "ada@example.com", "secret1")
		if fe := formError(t, err); fe.General != validate.MsgWrongCredentials {
			t.Fatalf("login general = %q", fe.General)
		}
		_, err = svc.Signup(ctx, "Ada", "ada@example.com", "secret1")
		if fe := formError(t, err); fe.General != validate.MsgSignupIncomplete {
			t.Fatalf("signup general = %q", fe.General)
		}
	}
	if sess.Current().Authenticated() {
		t.Fatalf("incomplete response produced a session")
	}
}

func TestSignup_SuccessAndDuplicate(t *testing.T) {
	svc, _, sess := newService(t)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "Ada", "ada@example.com", "secret1"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if !sess.Current().Authenticated() {
		t.Fatalf("signup did not sign in")
	}
	if err := svc.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if sess.Current().Authenticated() {
		t.Fatalf("logout left a session")
	}

	_, err := svc.Signup(ctx, "Ada Again", "ada@example.com", "secret1")
	fe := formError(t, err)
	if fe.Field(validate.FieldEmail) != validate.MsgEmailRegistered {
		t.Fatalf("fields = %v", fe.Fields)
	}
}

func TestSignup_ServerFieldErrors(t *testing.T) {
	svc, fake, _ := newService(t)
	// Passes local rules but not the backend's minimum name length.
	_, err := svc.Signup(context.Background(), "Al", "al@example.com", "secret1")
	fe := formError(t, err)
	if fe.Field(validate.FieldName) == "" {
		t.Fatalf("expected a name error, got %v", fe)
	}
	if fake.Calls(fakeapi.RouteSignup) != 1 {
		t.Fatalf("signup calls = %d", fake.Calls(fakeapi.RouteSignup))
	}
}

func TestSignup_ServerDown(t *testing.T) {
	svc, fake, _ := newService(t)
	fake.FailNext(fakeapi.RouteSignup, http.StatusServiceUnavailable, "")
	_, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "secret1")
	if fe := formError(t, err); fe.General != validate.MsgSignupFailed {
		t.Fatalf("general = %q", fe.General)
	}
}

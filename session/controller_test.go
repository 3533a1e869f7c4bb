package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shelf-labs/shelfsync/api"
)

type routeRecorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *routeRecorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *routeRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

func (r *routeRecorder) count(route string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.routes {
		if got == route {
			n++
		}
	}
	return n
}

func authHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok-login"}`))
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok-register"}`))
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":7,"name":"Ada","email":"ada@example.com","role":"USER"}`))
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestController(t *testing.T, handler http.Handler, creds CredentialStore) (*Controller, *routeRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(api.ClientConfig{BaseURL: srv.URL, Tokens: creds})
	if err != nil {
		t.Fatalf("api.NewClient() error = %v", err)
	}

	nav := &routeRecorder{}
	ctrl, err := NewController(Config{
		API:         client,
		Credentials: creds,
		Navigator:   nav,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return ctrl, nav
}

func TestController_InitialState(t *testing.T) {
	creds := NewMemStore()
	ctrl, _ := newTestController(t, authHandler(t), creds)
	if got := ctrl.Current().State; got != StateAnonymous {
		t.Fatalf("state = %q, want %q with empty store", got, StateAnonymous)
	}

	creds2 := NewMemStore()
	if err := creds2.SetToken(context.Background(), "stored"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	ctrl2, _ := newTestController(t, authHandler(t), creds2)
	if got := ctrl2.Current().State; got != StateResolving {
		t.Fatalf("state = %q, want %q with stored credential", got, StateResolving)
	}
}

func TestController_LoginSuccess(t *testing.T) {
	creds := NewMemStore()
	ctrl, nav := newTestController(t, authHandler(t), creds)

	if err := ctrl.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	s := ctrl.Current()
	if s.State != StateAuthenticated {
		t.Fatalf("state = %q, want %q", s.State, StateAuthenticated)
	}
	if s.Identity == nil || s.Identity.Email != "ada@example.com" {
		t.Fatalf("identity = %+v, want ada@example.com", s.Identity)
	}
	token, err := creds.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "tok-login" {
		t.Fatalf("stored token = %q, want %q", token, "tok-login")
	}
	if nav.last() != "/" {
		t.Fatalf("navigated to %q, want %q", nav.last(), "/")
	}
}

func TestController_LoginFailureLeavesSessionUnchanged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})
	creds := NewMemStore()
	ctrl, nav := newTestController(t, mux, creds)

	err := ctrl.Login(context.Background(), "ada@example.com", "wrong")
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %v, want *OpError", err)
	}
	if opErr.Message != "Bad credentials" {
		t.Fatalf("message = %q, want server message", opErr.Message)
	}
	if got := ctrl.Current().State; got != StateAnonymous {
		t.Fatalf("state = %q, want unchanged %q", got, StateAnonymous)
	}
	token, _ := creds.Token(context.Background())
	if token != "" {
		t.Fatalf("stored token = %q, want empty", token)
	}
	if nav.last() != "" {
		t.Fatalf("navigated to %q, want no navigation", nav.last())
	}
}

func TestController_LoginValidatesInput(t *testing.T) {
	ctrl, _ := newTestController(t, http.NewServeMux(), NewMemStore())
	err := ctrl.Login(context.Background(), "", "")
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %v, want *OpError", err)
	}
}

func TestController_RegisterValidatesInput(t *testing.T) {
	ctrl, _ := newTestController(t, http.NewServeMux(), NewMemStore())

	cases := []RegisterInput{
		{Name: "", Email: "ada@example.com", Password: "longenough"},
		{Name: "Ada", Email: "not-an-email", Password: "longenough"},
		{Name: "Ada", Email: "ada@example.com", Password: "short"},
	}
	for _, in := range cases {
		if err := ctrl.Register(context.Background(), in); err == nil {
			t.Fatalf("Register(%+v) error = nil, want validation error", in)
		}
	}
}

func TestController_ResolveIsIdempotent(t *testing.T) {
	creds := NewMemStore()
	creds.SetToken(context.Background(), "stored")
	ctrl, _ := newTestController(t, authHandler(t), creds)

	for i := 0; i < 3; i++ {
		if err := ctrl.Resolve(context.Background()); err != nil {
			t.Fatalf("Resolve() #%d error = %v", i+1, err)
		}
		s := ctrl.Current()
		if s.State != StateAuthenticated {
			t.Fatalf("state = %q after resolve #%d, want %q", s.State, i+1, StateAuthenticated)
		}
		if s.Identity == nil || s.Identity.Email != "ada@example.com" {
			t.Fatalf("identity = %+v after resolve #%d, want stable ada@example.com", s.Identity, i+1)
		}
	}
	if !ctrl.Current().Resolved() {
		t.Fatal("Resolved() = false, want resolution to terminate")
	}
}

func TestController_ResolveInvalidCredentialClearsSilently(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	creds := NewMemStore()
	creds.SetToken(context.Background(), "stale")
	ctrl, _ := newTestController(t, mux, creds)

	if err := ctrl.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve() error = %v, want silent nil", err)
	}
	if got := ctrl.Current().State; got != StateAnonymous {
		t.Fatalf("state = %q, want %q", got, StateAnonymous)
	}
	token, _ := creds.Token(context.Background())
	if token != "" {
		t.Fatalf("stored token = %q, want cleared", token)
	}
}

func TestController_LogoutIsBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	creds := NewMemStore()
	creds.SetToken(context.Background(), "tok")
	ctrl, nav := newTestController(t, mux, creds)

	ctrl.Logout(context.Background())

	if got := ctrl.Current().State; got != StateAnonymous {
		t.Fatalf("state = %q, want %q", got, StateAnonymous)
	}
	token, _ := creds.Token(context.Background())
	if token != "" {
		t.Fatalf("stored token = %q, want cleared", token)
	}
	if nav.last() != "/login" {
		t.Fatalf("navigated to %q, want %q", nav.last(), "/login")
	}
}

func TestController_RefreshFailureLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	creds := NewMemStore()
	creds.SetToken(context.Background(), "tok")
	ctrl, nav := newTestController(t, mux, creds)

	err := ctrl.Refresh(context.Background(), "refresh-tok")
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %v, want *OpError", err)
	}
	if opErr.Message != "Failed to refresh token" {
		t.Fatalf("message = %q, want %q", opErr.Message, "Failed to refresh token")
	}
	if got := ctrl.Current().State; got != StateAnonymous {
		t.Fatalf("state = %q, want logged out", got)
	}
	if nav.last() != "/login" {
		t.Fatalf("navigated to %q, want %q", nav.last(), "/login")
	}
}

func TestController_InvalidateActsOnce(t *testing.T) {
	creds := NewMemStore()
	ctrl, nav := newTestController(t, authHandler(t), creds)
	if err := ctrl.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	var mu sync.Mutex
	anonymousNotices := 0
	ctrl.OnChange(func(s Session) {
		if s.State == StateAnonymous {
			mu.Lock()
			anonymousNotices++
			mu.Unlock()
		}
	})

	ctrl.Invalidate()
	ctrl.Invalidate()
	ctrl.Invalidate()

	mu.Lock()
	defer mu.Unlock()
	if anonymousNotices != 1 {
		t.Fatalf("anonymous notifications = %d, want 1", anonymousNotices)
	}
	if got := nav.count("/login"); got != 1 {
		t.Fatalf("login navigations = %d, want 1", got)
	}
}

func TestController_ObserversSkipNoopTransitions(t *testing.T) {
	ctrl, _ := newTestController(t, authHandler(t), NewMemStore())

	notices := 0
	ctrl.OnChange(func(Session) { notices++ })

	// Already anonymous with no credential: nothing changes, nothing fires.
	ctrl.Invalidate()
	if notices != 0 {
		t.Fatalf("notifications = %d, want 0", notices)
	}
}

func TestController_ResetPasswordNavigatesToLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/reset-password", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctrl, nav := newTestController(t, mux, NewMemStore())

	if err := ctrl.ResetPassword(context.Background(), "reset-tok", "newpassword"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if nav.last() != "/login" {
		t.Fatalf("navigated to %q, want %q", nav.last(), "/login")
	}
}

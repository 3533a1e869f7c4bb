package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/shelf-labs/shelfsync/api"
	"github.com/shelf-labs/shelfsync/core"
)

// State is the position of the session machine.
type State string

const (
	// StateAnonymous means no identity is established.
	StateAnonymous State = "ANONYMOUS"
	// StateResolving means a stored credential exists and identity lookup
	// has not completed yet.
	StateResolving State = "RESOLVING"
	// StateAuthenticated means the credential resolved to an identity.
	StateAuthenticated State = "AUTHENTICATED"
)

// Session is a snapshot of the machine: Identity is non-nil iff the state is
// StateAuthenticated.
type Session struct {
	State    State
	Identity *core.Identity
}

// Resolved reports whether credential resolution has terminated, success or
// failure.
func (s Session) Resolved() bool {
	return s.State != StateResolving
}

// Navigator receives forced navigation requests (post-login home redirect,
// post-logout login redirect). Implementations must not block.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// OpError is a failed session operation with the user-facing message already
// selected: the server's own message when it sent one, a per-operation
// default otherwise.
type OpError struct {
	Message string
	Err     error
}

func (e *OpError) Error() string {
	return e.Message
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// RegisterInput is the registration form payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Config configures a Controller.
type Config struct {
	// API is the gateway used for all auth endpoints.
	API *api.Client

	// Credentials is the credential slot the controller owns.
	Credentials CredentialStore

	// Navigator receives forced navigations. May be nil.
	Navigator Navigator

	// HomeRoute and LoginRoute are the navigation targets after login and
	// logout (defaults "/" and "/login").
	HomeRoute  string
	LoginRoute string

	Logger *slog.Logger
}

// Controller owns the session state machine. It is the sole writer of the
// credential store for identity purposes; the gateway reaches it only through
// Invalidate.
type Controller struct {
	api        *api.Client
	creds      CredentialStore
	nav        Navigator
	homeRoute  string
	loginRoute string
	logger     *slog.Logger
	validate   *validator.Validate

	mu        sync.RWMutex
	session   Session
	observers []func(Session)
}

// NewController creates a session controller. The initial state is
// StateResolving when the credential store holds a token, StateAnonymous
// otherwise; call Resolve to terminate the resolving state.
func NewController(cfg Config) (*Controller, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("session: api client is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("session: credential store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	homeRoute := cfg.HomeRoute
	if homeRoute == "" {
		homeRoute = "/"
	}
	loginRoute := cfg.LoginRoute
	if loginRoute == "" {
		loginRoute = "/login"
	}

	c := &Controller{
		api:        cfg.API,
		creds:      cfg.Credentials,
		nav:        cfg.Navigator,
		homeRoute:  homeRoute,
		loginRoute: loginRoute,
		logger:     logger,
		validate:   validator.New(),
		session:    Session{State: StateAnonymous},
	}

	token, err := cfg.Credentials.Token(context.Background())
	if err != nil {
		logger.Warn("reading stored credential failed, starting anonymous", "error", err)
	} else if token != "" {
		c.session = Session{State: StateResolving}
	}
	return c, nil
}

// Current returns a snapshot of the session.
func (c *Controller) Current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Identity returns the authenticated identity, or nil when anonymous or
// still resolving.
func (c *Controller) Identity() *core.Identity {
	return c.Current().Identity
}

// OnChange registers an observer invoked after every session change: login,
// logout, resolution, invalidation. Observers run synchronously on the
// mutating goroutine and must not block.
func (c *Controller) OnChange(fn func(Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Resolve looks up the identity behind the stored credential. On success the
// session becomes authenticated; on any failure the credential is treated as
// invalid: the store is cleared and the session becomes anonymous, silently.
// Resolve always terminates the resolving state.
func (c *Controller) Resolve(ctx context.Context) error {
	token, err := c.creds.Token(ctx)
	if err != nil || token == "" {
		if err != nil {
			c.logger.Warn("reading credential for resolution failed", "error", err)
		}
		c.setSession(Session{State: StateAnonymous})
		return nil
	}

	c.setSession(Session{State: StateResolving})

	var identity core.Identity
	if err := c.api.Get(ctx, "/auth/me", nil, &identity); err != nil {
		// An expired or rejected credential is an expected steady-state
		// condition, not an exceptional one.
		c.logger.Info("credential did not resolve, clearing session", "error", err)
		if err := c.creds.Clear(ctx); err != nil {
			c.logger.Warn("clearing credential failed", "error", err)
		}
		c.setSession(Session{State: StateAnonymous})
		return nil
	}

	c.setSession(Session{State: StateAuthenticated, Identity: &identity})
	return nil
}

// Login authenticates with email and password. On success the returned
// credential is stored, the identity resolved, and navigation forced to the
// home route. On failure the session is left unchanged and the returned
// error carries the server's message (default "Login failed").
func (c *Controller) Login(ctx context.Context, email, password string) error {
	in := struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}{Email: email, Password: password}
	if err := c.validate.Struct(in); err != nil {
		return &OpError{Message: "Email and password are required", Err: err}
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.api.Post(ctx, "/auth/login", in, &resp); err != nil {
		return &OpError{Message: api.Message(err, "Login failed"), Err: err}
	}

	return c.adopt(ctx, resp.Token, "Login failed")
}

// Register creates an account and logs in with the returned credential.
func (c *Controller) Register(ctx context.Context, in RegisterInput) error {
	if err := c.validate.Struct(in); err != nil {
		return &OpError{Message: "Name, email and a password of at least 8 characters are required", Err: err}
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.api.Post(ctx, "/auth/register", in, &resp); err != nil {
		return &OpError{Message: api.Message(err, "Registration failed"), Err: err}
	}

	return c.adopt(ctx, resp.Token, "Registration failed")
}

// adopt stores a freshly issued credential, resolves it, and navigates home.
func (c *Controller) adopt(ctx context.Context, token, fallback string) error {
	if err := c.creds.SetToken(ctx, token); err != nil {
		return &OpError{Message: fallback, Err: err}
	}
	if err := c.Resolve(ctx); err != nil {
		return err
	}
	c.navigate(c.homeRoute)
	return nil
}

// Logout invalidates the session server-side on a best-effort basis (a
// failed call is ignored: logout always succeeds locally), clears the
// credential, resets to anonymous and navigates to the login route.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		c.logger.Debug("server-side logout failed, continuing", "error", err)
	}
	if err := c.creds.Clear(ctx); err != nil {
		c.logger.Warn("clearing credential failed", "error", err)
	}
	c.setSession(Session{State: StateAnonymous})
	c.navigate(c.loginRoute)
}

// ChangePassword is a stateless pass-through; it does not mutate the session.
func (c *Controller) ChangePassword(ctx context.Context, current, next string) error {
	in := struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}{Current: current, New: next}
	if err := c.api.Post(ctx, "/auth/change-password", in, nil); err != nil {
		return &OpError{Message: api.Message(err, "Failed to change password"), Err: err}
	}
	return nil
}

// ForgotPassword requests a reset link; stateless pass-through.
func (c *Controller) ForgotPassword(ctx context.Context, email string) error {
	in := struct {
		Email string `json:"email"`
	}{Email: email}
	if err := c.api.Post(ctx, "/auth/forgot-password", in, nil); err != nil {
		return &OpError{Message: api.Message(err, "Failed to send reset link"), Err: err}
	}
	return nil
}

// ResetPassword completes a reset flow with the emailed token; on success it
// navigates to the login route so the user can sign in again.
func (c *Controller) ResetPassword(ctx context.Context, token, password string) error {
	in := struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}{Token: token, Password: password}
	if err := c.api.Post(ctx, "/auth/reset-password", in, nil); err != nil {
		return &OpError{Message: api.Message(err, "Failed to reset password"), Err: err}
	}
	c.navigate(c.loginRoute)
	return nil
}

// Refresh exchanges a refresh token for a new credential and re-resolves.
// An unrefreshable session is treated as invalid, not merely pending: any
// failure performs a full Logout.
func (c *Controller) Refresh(ctx context.Context, refreshToken string) error {
	in := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.api.Post(ctx, "/auth/refresh", in, &resp); err != nil {
		c.Logout(ctx)
		return &OpError{Message: api.Message(err, "Failed to refresh token"), Err: err}
	}
	return c.adopt(ctx, resp.Token, "Failed to refresh token")
}

// Invalidate resets the session after a server-confirmed 401. It is
// idempotent: repeated calls for the same dead credential act once. This is
// the gateway's entry point; it wins over any concurrent controller write.
func (c *Controller) Invalidate() {
	ctx := context.Background()

	token, err := c.creds.Token(ctx)
	if err != nil {
		c.logger.Warn("reading credential during invalidation failed", "error", err)
	}

	c.mu.RLock()
	alreadyAnonymous := c.session.State == StateAnonymous
	c.mu.RUnlock()
	if alreadyAnonymous && token == "" {
		return
	}

	if err := c.creds.Clear(ctx); err != nil {
		c.logger.Warn("clearing credential failed", "error", err)
	}
	c.setSession(Session{State: StateAnonymous})
	c.navigate(c.loginRoute)
}

// setSession swaps the session snapshot and notifies observers when it
// actually changed.
func (c *Controller) setSession(next Session) {
	c.mu.Lock()
	prev := c.session
	if sessionsEqual(prev, next) {
		c.mu.Unlock()
		return
	}
	c.session = next
	observers := make([]func(Session), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
}

func sessionsEqual(a, b Session) bool {
	if a.State != b.State {
		return false
	}
	if (a.Identity == nil) != (b.Identity == nil) {
		return false
	}
	if a.Identity != nil && *a.Identity != *b.Identity {
		return false
	}
	return true
}

func (c *Controller) navigate(route string) {
	if c.nav != nil {
		c.nav.Navigate(route)
	}
}

// Compile-time interface check: the gateway invalidates through this.
var _ api.Invalidator = (*Controller)(nil)

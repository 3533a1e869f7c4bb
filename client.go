// Package shelfsync is a Go client for the online library service. It wires
// the session controller, HTTP gateway, optimistic catalog and notification
// channel together the way the browser client composed them: the gateway
// reads the credential slot on every call and invalidates the session on any
// 401, mutations go through the optimistic engine, and the notification
// channel re-keys itself whenever the session credential changes.
package shelfsync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shelf-labs/shelfsync/api"
	"github.com/shelf-labs/shelfsync/catalog"
	"github.com/shelf-labs/shelfsync/guard"
	"github.com/shelf-labs/shelfsync/notify"
	"github.com/shelf-labs/shelfsync/session"
)

// Config configures an App.
type Config struct {
	// BaseURL is the HTTP API root, e.g. "http://localhost:8081".
	BaseURL string

	// SocketURL is the push endpoint, e.g. "ws://localhost:8081/ws/notifications".
	// Empty disables the notification channel.
	SocketURL string

	// Credentials is the persistent credential slot (default: in-memory).
	Credentials session.CredentialStore

	// Navigator receives forced navigations from the session. May be nil.
	Navigator session.Navigator

	// HTTPClient overrides the gateway's underlying client. May be nil.
	HTTPClient *http.Client

	// Observer receives per-call gateway telemetry. May be nil.
	Observer api.Observer

	// History optionally persists notifications. May be nil.
	History notify.HistoryStore

	// RecentSize caps the in-memory recent-notification ring (default 100).
	RecentSize int

	Logger *slog.Logger
}

// App is the composed client.
type App struct {
	api     *api.Client
	session *session.Controller
	service *catalog.Service
	books   *catalog.Mutator
	channel *notify.Channel
	logger  *slog.Logger
}

// New creates an App from the given configuration.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = session.NewMemStore()
	}

	// The gateway needs the controller for 401 invalidation and the
	// controller needs the gateway for its calls; the indirection breaks
	// the cycle.
	inv := &lazyInvalidator{}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:       cfg.BaseURL,
		HTTPClient:    cfg.HTTPClient,
		Tokens:        creds,
		OnAuthInvalid: inv,
		Observer:      cfg.Observer,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	ctrl, err := session.NewController(session.Config{
		API:         client,
		Credentials: creds,
		Navigator:   cfg.Navigator,
		HomeRoute:   guard.RouteHome,
		LoginRoute:  guard.RouteLogin,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	inv.set(ctrl)

	service := catalog.NewService(client)

	app := &App{
		api:     client,
		session: ctrl,
		service: service,
		books:   catalog.NewMutator(service, ctrl, logger),
		logger:  logger,
	}

	if cfg.SocketURL != "" {
		channel, err := notify.NewChannel(notify.ChannelConfig{
			URL: cfg.SocketURL,
			Token: func() string {
				token, err := creds.Token(context.Background())
				if err != nil {
					logger.Warn("reading credential for notification channel failed", "error", err)
					return ""
				}
				return token
			},
			RecentSize: cfg.RecentSize,
			History:    cfg.History,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		app.channel = channel

		// Re-key the push connection whenever the credential changes: a
		// fresh login reconnects with the new token, a logout or forced
		// invalidation drops the now-dead connection.
		ctrl.OnChange(func(s session.Session) {
			switch s.State {
			case session.StateAuthenticated:
				if err := channel.Reconnect(context.Background()); err != nil && !errors.Is(err, notify.ErrNoCredential) {
					logger.Warn("reconnecting notification channel failed", "error", err)
				}
			case session.StateAnonymous:
				_ = channel.Close()
			}
		})
	}

	return app, nil
}

// Start terminates a pending credential resolution, if any. Call once after
// New.
func (a *App) Start(ctx context.Context) error {
	if a.session.Current().State == session.StateResolving {
		return a.session.Resolve(ctx)
	}
	return nil
}

// Close releases the push connection. The credential store is owned by the
// caller and stays open.
func (a *App) Close() error {
	if a.channel != nil {
		return a.channel.Close()
	}
	return nil
}

// Session returns the session controller.
func (a *App) Session() *session.Controller {
	return a.session
}

// Books returns the optimistic catalog mutator.
func (a *App) Books() *catalog.Mutator {
	return a.books
}

// Catalog returns the raw catalog service.
func (a *App) Catalog() *catalog.Service {
	return a.service
}

// Notifications returns the push channel, or nil when no socket URL was
// configured.
func (a *App) Notifications() *notify.Channel {
	return a.channel
}

// API returns the underlying gateway client.
func (a *App) API() *api.Client {
	return a.api
}

// Guard applies the client's route table to the current session.
func (a *App) Guard(route string) guard.Decision {
	return guard.For(route, a.session.Current())
}

// lazyInvalidator defers the gateway→controller edge until both exist.
type lazyInvalidator struct {
	mu     sync.RWMutex
	target api.Invalidator
}

func (l *lazyInvalidator) set(target api.Invalidator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = target
}

// Invalidate forwards to the controller once wired; a 401 before wiring
// completes has nothing to invalidate.
func (l *lazyInvalidator) Invalidate() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.target != nil {
		l.target.Invalidate()
	}
}

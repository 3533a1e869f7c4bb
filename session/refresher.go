package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/robfig/cron/v3"
)

// Refresher keeps an authenticated session alive by watching the bearer's
// expiry and calling Controller.Refresh before it lapses. Tokens that are
// not JWTs (or carry no exp claim) are opaque to the refresher and never
// trigger a refresh.
type Refresher struct {
	ctrl         *Controller
	refreshToken func() string
	leeway       time.Duration
	logger       *slog.Logger
	cron         *cron.Cron
}

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	// Controller is the session to keep alive.
	Controller *Controller

	// RefreshToken yields the long-lived refresh token for POST /auth/refresh.
	RefreshToken func() string

	// Schedule is a cron expression for the check cadence (default "@every 1m").
	Schedule string

	// Leeway refreshes when the bearer expires within this window (default 2m).
	Leeway time.Duration

	Logger *slog.Logger
}

// NewRefresher creates a Refresher and registers its schedule; call Start to
// begin checking.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Controller == nil {
		return nil, fmt.Errorf("session: refresher requires a controller")
	}
	if cfg.RefreshToken == nil {
		return nil, fmt.Errorf("session: refresher requires a refresh token source")
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = 2 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Refresher{
		ctrl:         cfg.Controller,
		refreshToken: cfg.RefreshToken,
		leeway:       leeway,
		logger:       logger,
		cron:         cron.New(),
	}
	if _, err := r.cron.AddFunc(schedule, r.check); err != nil {
		return nil, fmt.Errorf("session: refresher schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the background schedule.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for an in-flight check to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Check runs a single refresh check. Exported for testing; the cron schedule
// calls it periodically.
func (r *Refresher) Check(ctx context.Context) {
	token, err := r.ctrl.creds.Token(ctx)
	if err != nil {
		r.logger.Warn("refresher could not read credential", "error", err)
		return
	}
	if token == "" {
		return
	}

	exp, ok := TokenExpiry(token)
	if !ok {
		return
	}
	if time.Until(exp) > r.leeway {
		return
	}

	r.logger.Info("bearer expiring, refreshing session", "expires_at", exp)
	if err := r.ctrl.Refresh(ctx, r.refreshToken()); err != nil {
		r.logger.Warn("session refresh failed", "error", err)
	}
}

func (r *Refresher) check() {
	r.Check(context.Background())
}

// TokenExpiry decodes a JWT bearer without verifying its signature and
// returns the exp claim. ok is false for opaque tokens or tokens without
// an expiry. The server remains the authority on validity; this is only a
// scheduling hint.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

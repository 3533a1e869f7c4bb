// Package guard derives page-access decisions from session state. Guards are
// pure: they hold no state of their own and never trigger side effects.
package guard

import (
	"github.com/shelf-labs/shelfsync/core"
	"github.com/shelf-labs/shelfsync/session"
)

// Routes of the client, matching the original page table.
const (
	RouteHome           = "/"
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"
	RouteChangePassword = "/change-password"
	RouteBooks          = "/books"
	RouteUsers          = "/users"
	RouteReports        = "/reports"
	RouteProfile        = "/profile"
	RouteHistory        = "/history"
)

// Action is the outcome of a guard check.
type Action string

const (
	// ActionRender allows the guarded view.
	ActionRender Action = "render"
	// ActionRedirect sends the user to Decision.Route instead.
	ActionRedirect Action = "redirect"
	// ActionLoading shows an inert placeholder while the session resolves;
	// it prevents a flash-redirect before identity resolution completes.
	ActionLoading Action = "loading"
)

// Decision is what a guard wants done with a view.
type Decision struct {
	Action Action
	Route  string // redirect target, set iff Action is ActionRedirect
}

// Authenticated renders the view only for an authenticated session: a
// resolving session gets a loading placeholder and an anonymous one is
// redirected to the login route.
func Authenticated(s session.Session) Decision {
	switch s.State {
	case session.StateResolving:
		return Decision{Action: ActionLoading}
	case session.StateAuthenticated:
		return Decision{Action: ActionRender}
	default:
		return Decision{Action: ActionRedirect, Route: RouteLogin}
	}
}

// AdminOnly additionally requires the admin role; authenticated non-admins
// are redirected home.
func AdminOnly(s session.Session) Decision {
	d := Authenticated(s)
	if d.Action != ActionRender {
		return d
	}
	if s.Identity == nil || s.Identity.Role != core.RoleAdmin {
		return Decision{Action: ActionRedirect, Route: RouteHome}
	}
	return Decision{Action: ActionRender}
}

// For applies the client's route table: public routes always render,
// authenticated-only routes go through Authenticated, admin routes through
// AdminOnly. Unknown routes render (the router owns not-found handling).
func For(route string, s session.Session) Decision {
	switch route {
	case RouteHome, RouteProfile, RouteHistory, RouteChangePassword:
		return Authenticated(s)
	case RouteUsers, RouteReports:
		return AdminOnly(s)
	default:
		return Decision{Action: ActionRender}
	}
}

// Package guard decides whether a route may render for the current session.
// It holds no state: every decision is a function of the session snapshot,
// the route and the requested target.
package guard

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/jrsteele09/tutorhub-web/session"
	"github.com/jrsteele09/tutorhub-web/users"
)

const (
	LoginPath        = "/login"
	HomePath         = "/"
	UnauthorizedPath = "/unauthorized"
	RedirectParam    = "redirect"
)

type Decision string

const (
	Render        Decision = "render"
	Pending       Decision = "pending" // session still bootstrapping, render nothing protected
	RedirectLogin Decision = "redirect_login"
	RedirectHome  Decision = "redirect_home"
	Unauthorized  Decision = "unauthorized"
)

type Outcome struct {
	Decision   Decision
	RedirectTo string
}

// Check evaluates route for the session in state. target is the path the
// visitor asked for; it is preserved through the login redirect.
func Check(state session.State, route routes.Route, target string) Outcome {
	switch {
	case route.GuestOnly && state.IsAuthenticated:
		return Outcome{Decision: RedirectHome, RedirectTo: HomePath}
	case route.IsPublic():
		return Outcome{Decision: Render}
	case state.IsLoading:
		return Outcome{Decision: Pending}
	case !state.IsAuthenticated:
		return Outcome{Decision: RedirectLogin, RedirectTo: LoginURL(target)}
	case !CanAccess(state.User, route.RequiredRoles...):
		return Outcome{Decision: Unauthorized, RedirectTo: UnauthorizedPath}
	default:
		return Outcome{Decision: Render}
	}
}

// CanAccess reports whether user may open a route restricted to roles.
// No roles means any user. A missing user never has access.
func CanAccess(user *users.User, roles ...string) bool {
	if user == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	return user.HasAnyRole(roles...)
}

// LoginURL returns the login page carrying target for the post-login resume
func LoginURL(target string) string {
	target = ResumeTarget(target)
	if target == HomePath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{RedirectParam: {target}}.Encode()
}

// ResumeTarget reduces raw to a local path (with query) that is safe to
// redirect to. Anything else, including the login page itself, yields "/".
func ResumeTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return HomePath
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return HomePath
	}
	if u.Path == LoginPath || strings.HasPrefix(u.Path, LoginPath+"/") {
		return HomePath
	}
	out := u.EscapedPath()
	if out == "" {
		out = HomePath
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

package guard_test

import (
	"testing"

	"github.com/jrsteele09/tutorhub-web/guard"
	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/jrsteele09/tutorhub-web/session"
	"github.com/jrsteele09/tutorhub-web/users"
	"github.com/stretchr/testify/require"
)

func userWithRole(role string) *users.User {
	return &users.User{ID: 7, Name: "Test", Role: &users.Role{Name: role}}
}

func authenticated(u *users.User) session.State {
	return session.State{User: u, IsAuthenticated: true}
}

var (
	loading   = session.State{IsLoading: true}
	anonymous = session.State{}

	home       = routes.Route{Name: "home", Href: "/"}
	login      = routes.Route{Name: "login", Href: "/login", GuestOnly: true}
	profile    = routes.Route{Name: "profile", Href: "/profile", Protected: true}
	adminUsers = routes.Route{Name: "dashboard.admin.users", Href: "/dashboard/admin/users", Protected: true, RequiredRoles: []string{"admin"}}
	staff      = routes.Route{Name: "staff", Href: "/staff", Protected: true, RequiredRoles: []string{"admin", "teacher"}}
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		state    session.State
		route    routes.Route
		target   string
		decision guard.Decision
		redirect string
	}{
		{"public while loading", loading, home, "/", guard.Render, ""},
		{"public anonymous", anonymous, home, "/", guard.Render, ""},
		{"protected while loading", loading, profile, "/profile", guard.Pending, ""},
		{"protected anonymous", anonymous, profile, "/profile", guard.RedirectLogin, "/login?redirect=%2Fprofile"},
		{"protected anonymous keeps query", anonymous, adminUsers, "/dashboard/admin/users?page=2", guard.RedirectLogin, "/login?redirect=%2Fdashboard%2Fadmin%2Fusers%3Fpage%3D2"},
		{"protected any role", authenticated(userWithRole("student")), profile, "/profile", guard.Render, ""},
		{"role allowed", authenticated(userWithRole("admin")), adminUsers, "/", guard.Render, ""},
		{"role compared case-insensitively", authenticated(userWithRole("ADMIN")), adminUsers, "/", guard.Render, ""},
		{"role denied", authenticated(userWithRole("student")), adminUsers, "/", guard.Unauthorized, guard.UnauthorizedPath},
		{"teacher on staff route", authenticated(userWithRole("teacher")), staff, "/", guard.Render, ""},
		{"missing role fails closed", authenticated(&users.User{ID: 1}), adminUsers, "/", guard.Unauthorized, guard.UnauthorizedPath},
		{"malformed role fails closed", authenticated(userWithRole("superuser")), staff, "/", guard.Unauthorized, guard.UnauthorizedPath},
		{"authenticated without user fails closed", session.State{IsAuthenticated: true}, profile, "/", guard.Unauthorized, guard.UnauthorizedPath},
		{"guest-only anonymous", anonymous, login, "/login", guard.Render, ""},
		{"guest-only authenticated", authenticated(userWithRole("student")), login, "/login", guard.RedirectHome, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := guard.Check(tt.state, tt.route, tt.target)
			require.Equal(t, tt.decision, out.Decision)
			require.Equal(t, tt.redirect, out.RedirectTo)
		})
	}
}

func TestCanAccess(t *testing.T) {
	require.False(t, guard.CanAccess(nil))
	require.False(t, guard.CanAccess(nil, "admin"))
	require.True(t, guard.CanAccess(userWithRole("student")))
	require.True(t, guard.CanAccess(userWithRole("Teacher"), "admin", "teacher"))
	require.False(t, guard.CanAccess(userWithRole("student"), "admin", "teacher"))
	require.False(t, guard.CanAccess(&users.User{}, "student"))
}

func TestResumeTarget(t *testing.T) {
	tests := map[string]string{
		"":                          "/",
		"/bookings":                 "/bookings",
		"/bookings?page=2":          "/bookings?page=2",
		"  /profile ":               "/profile",
		"https://evil.example/":     "/",
		"//evil.example/path":       "/",
		"/\\evil.example":           "/",
		"javascript:alert(1)":       "/",
		"bookings":                  "/",
		"/login":                    "/",
		"/login?redirect=/bookings": "/",
		"/dashboard/admin/users":    "/dashboard/admin/users",
	}
	for raw, want := range tests {
		require.Equal(t, want, guard.ResumeTarget(raw), raw)
	}
}

func TestLoginURL(t *testing.T) {
	require.Equal(t, "/login", guard.LoginURL("/"))
	require.Equal(t, "/login", guard.LoginURL("https://evil.example"))
	require.Equal(t, "/login?redirect=%2Fbookings%2Fnew", guard.LoginURL("/bookings/new"))
}

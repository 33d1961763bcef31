// Package routes holds the canonical route table of the front-end.
package routes

import (
	_ "embed"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	apperrors "github.com/jrsteele09/tutorhub-web/internal/errors"
	"github.com/jrsteele09/tutorhub-web/users"
	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var routesYAML []byte

// Route names used outside the table
const (
	Home          = "home"
	Login         = "login"
	Register      = "register"
	Unauthorized  = "unauthorized"
	Subjects      = "subjects"
	Bookings      = "bookings"
	BookingNew    = "bookings.new"
	Notifications = "notifications"
	Profile       = "profile"
	Dashboard     = "dashboard"

	AdminBookings = "dashboard.admin.bookings"
	AdminBooking  = "dashboard.admin.booking"
)

// Node is one entry of the route tree as written in routes.yaml
type Node struct {
	Name          string   `yaml:"name"`
	Title         string   `yaml:"title"`
	Href          string   `yaml:"href"`
	RequiredRoles []string `yaml:"requiredRoles"` // nil inherits the parent's
	Protected     *bool    `yaml:"protected"`     // nil inherits the parent's
	GuestOnly     bool     `yaml:"guestOnly"`
	View          string   `yaml:"view"`
	Children      []Node   `yaml:"children"`
}

// Route is a flattened, fully resolved entry of the table
type Route struct {
	Name          string // dotted path of node names, e.g. "dashboard.admin.users"
	Title         string
	Href          string // absolute, may hold {param} segments
	RequiredRoles []string
	Protected     bool
	GuestOnly     bool
	View          string
}

// IsPublic reports whether the route renders for anonymous visitors
func (r Route) IsPublic() bool {
	return !r.Protected
}

var paramPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Params lists the {param} names of the href in order
func (r Route) Params() []string {
	var names []string
	for _, m := range paramPattern.FindAllStringSubmatch(r.Href, -1) {
		names = append(names, m[1])
	}
	return names
}

// Build fills the {param} segments of the href. Every param must be given.
func (r Route) Build(params map[string]string) (string, error) {
	var missing []string
	out := paramPattern.ReplaceAllStringFunc(r.Href, func(seg string) string {
		name := seg[1 : len(seg)-1]
		v, ok := params[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return seg
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("[Route.Build] %s missing %s: %w", r.Name, strings.Join(missing, ", "), apperrors.ErrInvalidRoute)
	}
	return out, nil
}

// Flatten resolves a route tree into absolute routes, parents before children.
// It is pure: the nodes are not modified.
func Flatten(nodes []Node) []Route {
	return flatten(nodes, Route{Href: "/"}, "")
}

func flatten(nodes []Node, parent Route, prefix string) []Route {
	var out []Route
	for _, n := range nodes {
		r := Route{
			Name:          prefix + n.Name,
			Title:         n.Title,
			Href:          joinHref(parent.Href, n.Href),
			RequiredRoles: parent.RequiredRoles,
			Protected:     parent.Protected,
			GuestOnly:     n.GuestOnly,
			View:          n.View,
		}
		if n.RequiredRoles != nil {
			r.RequiredRoles = append([]string(nil), n.RequiredRoles...)
		}
		if n.Protected != nil {
			r.Protected = *n.Protected
		}
		if len(r.RequiredRoles) > 0 {
			r.Protected = true
		}
		out = append(out, r)
		out = append(out, flatten(n.Children, r, r.Name+".")...)
	}
	return out
}

func joinHref(parent, child string) string {
	child = strings.Trim(child, "/")
	if child == "" {
		return parent
	}
	return strings.TrimRight(parent, "/") + "/" + child
}

// Table indexes the flattened routes by name
type Table struct {
	routes []Route
	byName map[string]int
}

// Load parses the embedded route tree
func Load() (*Table, error) {
	return Parse(routesYAML)
}

// Parse builds a table from a YAML route tree
func Parse(data []byte) (*Table, error) {
	var nodes []Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("[routes.Parse] yaml: %w", err)
	}
	return NewTable(Flatten(nodes))
}

// NewTable validates routes: names and hrefs must be unique, roles must be known
func NewTable(routes []Route) (*Table, error) {
	t := &Table{routes: routes, byName: make(map[string]int, len(routes))}
	hrefs := make(map[string]string, len(routes))
	for i, r := range routes {
		if r.Name == "" || strings.HasSuffix(r.Name, ".") {
			return nil, fmt.Errorf("[routes.NewTable] route %q has no name: %w", r.Href, apperrors.ErrInvalidRoute)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("[routes.NewTable] duplicate name %q: %w", r.Name, apperrors.ErrInvalidRoute)
		}
		if other, dup := hrefs[r.Href]; dup {
			return nil, fmt.Errorf("[routes.NewTable] %q and %q share href %s: %w", other, r.Name, r.Href, apperrors.ErrInvalidRoute)
		}
		for _, role := range r.RequiredRoles {
			if _, ok := users.ParseRole(role); !ok {
				return nil, fmt.Errorf("[routes.NewTable] %q requires unknown role %q: %w", r.Name, role, apperrors.ErrInvalidRoute)
			}
		}
		t.byName[r.Name] = i
		hrefs[r.Href] = r.Name
	}
	return t, nil
}

// ByName returns the route called name
func (t *Table) ByName(name string) (Route, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}

// Href returns the href of name with params filled in
func (t *Table) Href(name string, params map[string]string) (string, error) {
	r, ok := t.ByName(name)
	if !ok {
		return "", fmt.Errorf("[Table.Href] unknown route %q: %w", name, apperrors.ErrInvalidRoute)
	}
	return r.Build(params)
}

// All returns every route, parents before children
func (t *Table) All() []Route {
	return append([]Route(nil), t.routes...)
}

// Navigation returns the routes a user with role may follow from a menu:
// no params, not guest-only, and allowed for the role.
func (t *Table) Navigation(user *users.User) []Route {
	var out []Route
	for _, r := range t.routes {
		if r.GuestOnly || len(r.Params()) > 0 {
			continue
		}
		if r.Protected && user == nil {
			continue
		}
		if len(r.RequiredRoles) > 0 && !user.HasAnyRole(r.RequiredRoles...) {
			continue
		}
		out = append(out, r)
	}
	return out
}

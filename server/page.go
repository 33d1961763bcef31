package server

import (
	"net/http"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/prefs"
	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/jrsteele09/tutorhub-web/users"
)

const (
	genericFormMessage = "Please check the highlighted fields and try again."
	unavailableMessage = "The service is unavailable right now. Please try again later."
	failedMessage      = "Something went wrong. Please try again."
)

// Page is the model every view is rendered with
type Page struct {
	AppName string
	Title   string
	Path    string // request path, used by forms that return to the page
	User    *users.User
	Nav     []NavLink
	Theme   prefs.Theme
	Notice  string
	Form    Form
	Data    any
}

type NavLink struct {
	Title  string
	Href   string
	Active bool
}

// Form carries submitted values and the errors to show next to each field
type Form struct {
	Values  map[string]string
	Errors  map[string]string
	Message string
}

func (f Form) Value(name string) string {
	return f.Values[name]
}

func (f Form) Error(name string) string {
	return f.Errors[name]
}

func (f Form) HasErrors() bool {
	return f.Message != "" || len(f.Errors) > 0
}

func (s *Server) newPage(r *http.Request, route routes.Route) *Page {
	user := s.tab.Session().User()
	p := &Page{
		AppName: s.appName,
		Title:   route.Title,
		Path:    r.URL.RequestURI(),
		User:    user,
		Theme:   s.tab.Prefs().Theme(r.Context()),
		Form:    Form{Values: map[string]string{}, Errors: map[string]string{}},
	}
	for _, nav := range s.table.Navigation(user) {
		p.Nav = append(p.Nav, NavLink{Title: nav.Title, Href: nav.Href, Active: nav.Href == r.URL.Path})
	}
	return p
}

// formFromError maps the field errors of err onto the form by field name and
// sets a message that never leaks backend details.
func formFromError(err error, values map[string]string) Form {
	f := Form{Values: values, Errors: map[string]string{}}
	for name, msgs := range api.FieldErrors(err) {
		if len(msgs) > 0 {
			f.Errors[name] = msgs[0]
		}
	}
	switch {
	case len(f.Errors) > 0:
		f.Message = genericFormMessage
	case api.IsTransient(err):
		f.Message = unavailableMessage
	default:
		f.Message = failedMessage
	}
	return f
}

// statusForError picks the response status of a form rendered with err
func statusForError(err error) int {
	switch api.KindOf(err) {
	case api.KindValidation:
		return http.StatusUnprocessableEntity
	case api.KindAuthentication:
		return http.StatusUnauthorized
	case api.KindNetwork, api.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

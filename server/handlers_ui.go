package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/tutorhub-web/api"
	"github.com/jrsteele09/tutorhub-web/guard"
	"github.com/jrsteele09/tutorhub-web/prefs"
	"github.com/jrsteele09/tutorhub-web/query"
	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errNotFound = errors.New("not found")

// ViewHandler renders route with the data its loader fetched
func (s *Server) ViewHandler(route routes.Route) http.HandlerFunc {
	load := s.loaders()[route.View]
	return func(w http.ResponseWriter, r *http.Request) {
		page := s.newPage(r, route)
		if load != nil {
			if err := load(r, page); err != nil {
				s.viewError(w, r, route, err)
				return
			}
		}
		s.render(w, http.StatusOK, route.View, page)
	}
}

// viewError turns a failed data load into a redirect or an error page.
// A 401 expires the session, then sends the visitor to login.
func (s *Server) viewError(w http.ResponseWriter, r *http.Request, route routes.Route, err error) {
	switch {
	case api.IsAuthentication(err):
		s.tab.Auth().ExpireSession(r.Context())
		http.Redirect(w, r, guard.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
	case errors.Is(err, query.ErrDisabled) && !s.tab.Session().IsAuthenticated():
		http.Redirect(w, r, guard.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
	case errors.Is(err, query.ErrDisabled):
		http.Redirect(w, r, guard.UnauthorizedPath, http.StatusSeeOther)
	case errors.Is(err, query.ErrSuperseded):
		// the session changed while the data was loading
		w.Header().Set("Retry-After", "1")
		s.render(w, http.StatusServiceUnavailable, loadingView, s.newPage(r, route))
	case errors.Is(err, errNotFound):
		page := s.newPage(r, route)
		page.Title = "Not found"
		page.Notice = "The page you asked for does not exist."
		s.render(w, http.StatusNotFound, errorView, page)
	default:
		logError(s.log, r.Method, r.URL.Path, err)
		status := http.StatusInternalServerError
		if api.KindOf(err) != "" {
			status = statusForError(err)
		}
		page := s.newPage(r, route)
		page.Notice = failedMessage
		if api.IsTransient(err) {
			page.Notice = unavailableMessage
		}
		s.render(w, status, errorView, page)
	}
}

// ThemeHandler stores the colour theme and returns to the submitting page
func (s *Server) ThemeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		theme, err := prefs.ParseTheme(r.FormValue("theme"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.tab.Prefs().SetTheme(r.Context(), theme); err != nil {
			logError(s.log, r.Method, r.URL.Path, err)
		}
		http.Redirect(w, r, guard.ResumeTarget(r.FormValue(guard.RedirectParam)), http.StatusSeeOther)
	}
}

// HealthHandler reports the session phase of the tab
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok " + string(s.tab.Session().Phase()) + "\n"))
	}
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP
}

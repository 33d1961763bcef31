package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/tutorhub-web/guard"
	"github.com/jrsteele09/tutorhub-web/routes"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) HTMLMiddleWare(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FrameSecurityMiddleware,
	}
	chainedMiddleWare = append(chainedMiddleWare, mw...)
	return chainedMiddleWare
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.env != "DEV" {
			next(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)
		s.log.Info().
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msgf("[%-19s] %s", colourMethod(r.Method), r.URL.RequestURI())
	}
}

func (s *Server) FrameSecurityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Prevent embedding on other sites
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		next(w, r)
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logError(s.log, r.Method, r.URL.Path, fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// GuardMiddleware lets the request through only when the route guard
// renders route for the current session, and redirects otherwise.
func (s *Server) GuardMiddleware(route routes.Route) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			outcome := guard.Check(s.tab.Session().Snapshot(), route, r.URL.RequestURI())
			s.metrics.GuardDecision(route.Name, string(outcome.Decision))

			switch outcome.Decision {
			case guard.Render:
				next(w, r)
			case guard.Pending:
				w.Header().Set("Retry-After", "1")
				s.render(w, http.StatusServiceUnavailable, loadingView, s.newPage(r, route))
			default:
				http.Redirect(w, r, outcome.RedirectTo, http.StatusSeeOther)
			}
		}
	}
}

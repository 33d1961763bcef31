package server

import (
	"net/http"

	"github.com/jrsteele09/tutorhub-web/routes"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc(http.MethodGet, RouteHealth, s.HealthHandler())
	s.RegisterRouteFunc(http.MethodGet, RouteMetrics, s.MetricsHandler())
	s.RegisterRouteFunc(http.MethodPost, RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodPost, RouteTheme, ChainMiddleware(s.ThemeHandler(), s.HTMLMiddleWare()...))

	// Every page of the table, behind the guard
	for _, route := range s.table.All() {
		s.RegisterRouteFunc(http.MethodGet, route.Href, s.guarded(route, s.ViewHandler(route)))
	}

	s.registerAction(routes.Login, "", s.LoginSubmissionHandler)
	s.registerAction(routes.Register, "", s.RegisterSubmissionHandler)
	s.registerAction(routes.BookingNew, "", s.CreateBookingHandler)
	s.registerAction(routes.Bookings, ActionRate, s.RateHandler)
	s.registerAction(routes.Notifications, ActionRead, s.MarkReadHandler)
	s.registerAction(routes.AdminBooking, ActionDecision, s.DecideBookingHandler)
}

func (s *Server) guarded(route routes.Route, handler http.HandlerFunc) http.HandlerFunc {
	return ChainMiddleware(handler, s.HTMLMiddleWare(s.GuardMiddleware(route))...)
}

// registerAction serves a form POST under the href of the named route and
// with that route's guard. Actions of routes missing from the table are skipped.
func (s *Server) registerAction(name, suffix string, handler func(routes.Route) http.HandlerFunc) {
	route, ok := s.table.ByName(name)
	if !ok {
		s.log.Warn().Str("route", name).Msg("[initRoutes] route not in table, action not served")
		return
	}
	s.RegisterRouteFunc(http.MethodPost, route.Href+suffix, s.guarded(route, handler(route)))
}

// Package server is the server-rendered front-end shell. Every route of the
// route table is served behind the route guard and rendered from the tab's
// session and query cache.
package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/jrsteele09/tutorhub-web/internal/metrics"
	"github.com/jrsteele09/tutorhub-web/routes"
	"github.com/jrsteele09/tutorhub-web/tab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Server struct {
	env      string // DEV logs every registered route and request
	appName  string
	router   *chi.Mux
	routes   []string
	tab      *tab.Tab
	table    *routes.Table
	views    *views
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      zerolog.Logger
}

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics records guard decisions in m and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

func New(cfg config.Config, tb *tab.Tab, table *routes.Table, options ...Option) (*Server, error) {
	if tb == nil {
		return nil, errors.New("[server.New] tab is required")
	}
	if table == nil {
		return nil, errors.New("[server.New] route table is required")
	}
	s := &Server{
		env:     cfg.GetEnv(),
		appName: cfg.GetAppName(),
		router:  chi.NewRouter(),
		tab:     tb,
		table:   table,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	v, err := parseViews(table)
	if err != nil {
		return nil, err
	}
	s.views = v

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.MethodFunc(method, pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path := cutRoute(route)
		logRoute(s.log, method, path)
	}
}

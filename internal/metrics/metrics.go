// Package metrics declares the prometheus collectors of the front-end core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tutorhub"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheReads     *prometheus.CounterVec
	cacheFetches   *prometheus.CounterVec
	cacheRetries   *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
	sessionEvents  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "reads_total",
			Help:      "Cache reads by resource and outcome (fresh, stale, miss, disabled).",
		}, []string{"resource", "outcome"}),
		cacheFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetches_total",
			Help:      "Completed fetches by resource and result (success, error, discarded).",
		}, []string{"resource", "result"}),
		cacheRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "retries_total",
			Help:      "Fetch retries by resource.",
		}, []string{"resource"}),
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route guard decisions by route and decision.",
		}, []string{"route", "decision"}),
		sessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session transitions (login, register, logout, expired, broadcast, bootstrap).",
		}, []string{"event"}),
	}
}

func (m *Metrics) CacheRead(resource, outcome string) {
	if m == nil {
		return
	}
	m.cacheReads.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) CacheFetch(resource, result string) {
	if m == nil {
		return
	}
	m.cacheFetches.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) CacheRetry(resource string) {
	if m == nil {
		return
	}
	m.cacheRetries.WithLabelValues(resource).Inc()
}

func (m *Metrics) GuardDecision(route, decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(route, decision).Inc()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("nil metrics record nothing", func(t *testing.T) {
		var m *Metrics
		require.NotPanics(t, func() {
			m.CacheRead("bookings", "fresh")
			m.CacheFetch("bookings", "success")
			m.CacheRetry("bookings")
			m.GuardDecision("home", "render")
			m.SessionEvent("login")
		})
	})

	t.Run("counters", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := New(reg)

		m.CacheRead("bookings", "stale")
		m.CacheRead("bookings", "stale")
		m.CacheFetch("subjects", "error")
		m.CacheRetry("subjects")
		m.GuardDecision("dashboard", "redirect_login")
		m.SessionEvent("logout")

		require.Equal(t, 2.0, testutil.ToFloat64(m.cacheReads.WithLabelValues("bookings", "stale")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.cacheFetches.WithLabelValues("subjects", "error")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.cacheRetries.WithLabelValues("subjects")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("dashboard", "redirect_login")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("logout")))

		families, err := reg.Gather()
		require.NoError(t, err)
		require.Len(t, families, 5)
	})
}

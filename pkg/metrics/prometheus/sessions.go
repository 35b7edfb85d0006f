package prometheus

import (
	"sync"

	"github.com/marmos91/hostkit/pkg/metrics"
	"github.com/marmos91/hostkit/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics counts web application sessions. It is a session.Listener
// so it can be chained with the application's own listener.
//
// Sessions restored from or persisted to a store do not pass through the
// listener, so only lifetime counters are exported, no live gauge.
type SessionMetrics struct {
	created   prometheus.Counter
	destroyed prometheus.Counter
}

var _ session.Listener = (*SessionMetrics)(nil)

var (
	sessionMetricsMu  sync.Mutex
	sessionMetricsFor = map[*prometheus.Registry]*SessionMetrics{}
)

// NewSessionMetrics returns the Prometheus-backed session listener of the
// process-wide registry, creating it on first use.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSessionMetrics() *SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	sessionMetricsMu.Lock()
	defer sessionMetricsMu.Unlock()

	if m, ok := sessionMetricsFor[reg]; ok {
		return m
	}

	m := &SessionMetrics{
		created: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "hostkit_sessions_created_total",
				Help: "Total number of web application sessions created",
			},
		),
		destroyed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "hostkit_sessions_destroyed_total",
				Help: "Total number of web application sessions invalidated or expired",
			},
		),
	}
	sessionMetricsFor[reg] = m
	return m
}

func (m *SessionMetrics) SessionCreated(*session.Session) {
	if m == nil {
		return
	}
	m.created.Inc()
}

func (m *SessionMetrics) SessionDestroyed(*session.Session) {
	if m == nil {
		return
	}
	m.destroyed.Inc()
}

package metrics

import (
	"mercator-hq/tracebridge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks conversation session identifiers.
//
// Metrics:
//   - tracebridge_relay_session_established_total: Sessions established by mode
//   - tracebridge_relay_session_resets_total: Explicit session resets
//   - tracebridge_relay_conversations: Conversations currently tracked
//   - tracebridge_relay_conversations_evicted_total: Idle conversations evicted
type SessionMetrics struct {
	established   *prometheus.CounterVec
	resets        prometheus.Counter
	conversations prometheus.Gauge
	evicted       prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics with the provided registry.
func NewSessionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SessionMetrics {
	sm := &SessionMetrics{
		established: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_established_total",
				Help:      "Total number of session identifiers established",
			},
			[]string{"mode"},
		),

		resets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_resets_total",
				Help:      "Total number of explicit session resets",
			},
		),

		conversations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "conversations",
				Help:      "Number of conversations currently tracked",
			},
		),

		evicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "conversations_evicted_total",
				Help:      "Total number of idle conversations evicted",
			},
		),
	}

	registry.MustRegister(
		sm.established,
		sm.resets,
		sm.conversations,
		sm.evicted,
	)

	return sm
}

// RecordEstablished records a session id taking effect. mode is "adopt"
// when the id came from the collector and "local" when it was minted here.
func (sm *SessionMetrics) RecordEstablished(mode string) {
	sm.established.WithLabelValues(mode).Inc()
}

// RecordReset records an explicit session reset.
func (sm *SessionMetrics) RecordReset() {
	sm.resets.Inc()
}

// SetConversations updates the tracked conversation gauge.
func (sm *SessionMetrics) SetConversations(n int) {
	sm.conversations.Set(float64(n))
}

// RecordEvicted records idle conversations removed by eviction.
func (sm *SessionMetrics) RecordEvicted(n int) {
	if n > 0 {
		sm.evicted.Add(float64(n))
	}
}

package metrics

import (
	"time"

	"mercator-hq/tracebridge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the relay server's inbound traffic and background work.
//
// Metrics:
//   - tracebridge_relay_http_requests_total: Requests by route and status code
//   - tracebridge_relay_http_request_duration_seconds: Handler latency by route
//   - tracebridge_relay_streams_active: Open WebSocket streams
//   - tracebridge_relay_journal_writes_total: Journal writes by outcome
//   - tracebridge_relay_journal_pruned_total: Journal entries removed by retention
type RelayMetrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	streamsActive prometheus.Gauge
	journalWrites *prometheus.CounterVec
	journalPruned prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics with the provided registry.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of relay HTTP requests",
			},
			[]string{"route", "code"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of relay HTTP requests in seconds",
				Buckets:   cfg.DeliveryDurationBuckets,
			},
			[]string{"route"},
		),

		streamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "streams_active",
				Help:      "Number of open WebSocket streams",
			},
		),

		journalWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_writes_total",
				Help:      "Total number of delivery journal writes",
			},
			[]string{"status"},
		),

		journalPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "journal_pruned_total",
				Help:      "Total number of journal entries removed by retention",
			},
		),
	}

	registry.MustRegister(
		rm.httpRequests,
		rm.httpDuration,
		rm.streamsActive,
		rm.journalWrites,
		rm.journalPruned,
	)

	return rm
}

// RecordHTTPRequest records a completed relay request.
func (rm *RelayMetrics) RecordHTTPRequest(route, code string, duration time.Duration) {
	rm.httpRequests.WithLabelValues(route, code).Inc()
	rm.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// StreamOpened increments the active stream gauge.
func (rm *RelayMetrics) StreamOpened() {
	rm.streamsActive.Inc()
}

// StreamClosed decrements the active stream gauge.
func (rm *RelayMetrics) StreamClosed() {
	rm.streamsActive.Dec()
}

// RecordJournalWrite records a journal write outcome ("ok" or "error").
func (rm *RelayMetrics) RecordJournalWrite(status string) {
	rm.journalWrites.WithLabelValues(status).Inc()
}

// RecordPruned records journal entries removed by retention.
func (rm *RelayMetrics) RecordPruned(n int64) {
	if n > 0 {
		rm.journalPruned.Add(float64(n))
	}
}

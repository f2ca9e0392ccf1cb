package metrics

import (
	"time"

	"mercator-hq/tracebridge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics tracks trace event deliveries to the collector.
//
// Metrics:
//   - tracebridge_relay_events_total: Events by role, source and status
//   - tracebridge_relay_delivery_duration_seconds: Collector round trip
//   - tracebridge_relay_payload_size_bytes: Serialized event size
//   - tracebridge_relay_deliveries_in_flight: Sends currently awaiting a response
//   - tracebridge_relay_tokens_total: Usage tokens reported on assistant events
//   - tracebridge_relay_collector_healthy: 1 while the collector accepts events
type DeliveryMetrics struct {
	eventsTotal      *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	payloadSize      *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	tokensTotal      *prometheus.CounterVec
	collectorHealthy prometheus.Gauge
}

// NewDeliveryMetrics creates and registers delivery metrics with the provided registry.
func NewDeliveryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DeliveryMetrics {
	dm := &DeliveryMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_total",
				Help:      "Total number of trace events sent to the collector",
			},
			[]string{"role", "source", "status"},
		),

		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "delivery_duration_seconds",
				Help:      "Duration of collector round trips in seconds",
				Buckets:   cfg.DeliveryDurationBuckets,
			},
			[]string{"role", "status"},
		),

		payloadSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "payload_size_bytes",
				Help:      "Size of serialized trace events in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 12), // 256B to 512KB
			},
			[]string{"role"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "deliveries_in_flight",
				Help:      "Number of trace deliveries awaiting a collector response",
			},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total tokens reported on assistant response events",
			},
			[]string{"model", "type"},
		),

		collectorHealthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "collector_healthy",
				Help:      "Collector health status (1=healthy, 0=unhealthy)",
			},
		),
	}

	registry.MustRegister(
		dm.eventsTotal,
		dm.deliveryDuration,
		dm.payloadSize,
		dm.inFlight,
		dm.tokensTotal,
		dm.collectorHealthy,
	)

	dm.collectorHealthy.Set(1)

	return dm
}

// RecordDelivery records one completed delivery attempt.
//
// Parameters:
//   - role: "user" or "assistant"
//   - source: call site tag (e.g. "next-chats-share")
//   - status: "success", "failure" or "unconfigured"
//   - duration: collector round trip (zero when no request was made)
//   - payloadBytes: serialized event size (zero when serialization failed)
func (dm *DeliveryMetrics) RecordDelivery(role, source, status string, duration time.Duration, payloadBytes int) {
	dm.eventsTotal.WithLabelValues(role, source, status).Inc()

	if duration > 0 {
		dm.deliveryDuration.WithLabelValues(role, status).Observe(duration.Seconds())
	}
	if payloadBytes > 0 {
		dm.payloadSize.WithLabelValues(role).Observe(float64(payloadBytes))
	}
}

// RecordTokens records usage counts reported on an assistant event.
func (dm *DeliveryMetrics) RecordTokens(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		dm.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		dm.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// SetCollectorHealth updates the collector health gauge.
func (dm *DeliveryMetrics) SetCollectorHealth(healthy bool) {
	if healthy {
		dm.collectorHealthy.Set(1)
	} else {
		dm.collectorHealthy.Set(0)
	}
}

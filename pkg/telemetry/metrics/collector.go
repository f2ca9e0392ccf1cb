package metrics

import (
	"sync"
	"time"

	"mercator-hq/tracebridge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// maxLabelSets bounds the unique source and model values tracked before
// further values are folded into "other".
const maxLabelSets = 1000

// Collector is the single entry point for recording tracebridge metrics.
// All methods are safe on a nil *Collector and when metrics are disabled,
// so components may hold an optional collector without guarding each call.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	deliveryMetrics *DeliveryMetrics
	sessionMetrics  *SessionMetrics
	relayMetrics    *RelayMetrics

	// Cardinality tracking for caller-controlled labels
	sources *CardinalityLimiter
	models  *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := config.Default().Telemetry.Metrics
//	collector := metrics.NewCollector(&cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DeliveryDurationBuckets) == 0 {
		cfg.DeliveryDurationBuckets = append([]float64(nil), config.DefaultDeliveryDurationBuckets...)
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		deliveryMetrics: NewDeliveryMetrics(cfg, registry),
		sessionMetrics:  NewSessionMetrics(cfg, registry),
		relayMetrics:    NewRelayMetrics(cfg, registry),
		sources:         NewCardinalityLimiter(maxLabelSets),
		models:          NewCardinalityLimiter(maxLabelSets),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordDelivery records metrics for a completed delivery attempt.
//
// Example:
//
//	collector.RecordDelivery("user", "next-chats-share", "success", 80*time.Millisecond, 312)
func (c *Collector) RecordDelivery(role, source, status string, duration time.Duration, payloadBytes int) {
	if !c.enabled() {
		return
	}

	if !c.sources.Allow(source) {
		source = "other"
	}

	c.deliveryMetrics.RecordDelivery(role, source, status, duration, payloadBytes)
}

// RecordTokens records usage reported on an assistant response event.
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	if !c.enabled() {
		return
	}

	if model == "" {
		model = "unknown"
	}
	if !c.models.Allow(model) {
		model = "other"
	}

	c.deliveryMetrics.RecordTokens(model, promptTokens, completionTokens)
}

// DeliveryStarted increments the in-flight gauge. Pair with DeliveryFinished.
func (c *Collector) DeliveryStarted() {
	if !c.enabled() {
		return
	}
	c.deliveryMetrics.inFlight.Inc()
}

// DeliveryFinished decrements the in-flight gauge.
func (c *Collector) DeliveryFinished() {
	if !c.enabled() {
		return
	}
	c.deliveryMetrics.inFlight.Dec()
}

// UpdateCollectorHealth updates the collector health gauge.
func (c *Collector) UpdateCollectorHealth(healthy bool) {
	if !c.enabled() {
		return
	}
	c.deliveryMetrics.SetCollectorHealth(healthy)
}

// RecordSessionEstablished records a conversation's session id taking effect.
func (c *Collector) RecordSessionEstablished(mode string) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordEstablished(mode)
}

// RecordSessionReset records an explicit session reset.
func (c *Collector) RecordSessionReset() {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordReset()
}

// UpdateConversations sets the number of tracked conversations.
func (c *Collector) UpdateConversations(n int) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.SetConversations(n)
}

// RecordEvicted records idle conversations removed by eviction.
func (c *Collector) RecordEvicted(n int) {
	if !c.enabled() {
		return
	}
	c.sessionMetrics.RecordEvicted(n)
}

// RecordHTTPRequest records a completed relay HTTP request.
func (c *Collector) RecordHTTPRequest(route, code string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordHTTPRequest(route, code, duration)
}

// StreamOpened records a WebSocket stream being accepted.
func (c *Collector) StreamOpened() {
	if !c.enabled() {
		return
	}
	c.relayMetrics.StreamOpened()
}

// StreamClosed records a WebSocket stream ending.
func (c *Collector) StreamClosed() {
	if !c.enabled() {
		return
	}
	c.relayMetrics.StreamClosed()
}

// RecordJournalWrite records a journal write outcome.
func (c *Collector) RecordJournalWrite(err error) {
	if !c.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.relayMetrics.RecordJournalWrite(status)
}

// RecordPruned records journal entries removed by retention.
func (c *Collector) RecordPruned(n int64) {
	if !c.enabled() {
		return
	}
	c.relayMetrics.RecordPruned(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
// Returns false if adding this label set would exceed the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

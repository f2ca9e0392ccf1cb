package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/tracebridge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                 true,
		Namespace:               "test",
		Subsystem:               "relay",
		DeliveryDurationBuckets: []float64{0.01, 0.1, 1.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_NewCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("expected default namespace, got %q", cfg.Namespace)
	}
	if len(cfg.DeliveryDurationBuckets) == 0 {
		t.Error("expected default buckets")
	}
}

func TestCollector_RecordDelivery(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordDelivery("user", "next-chats-share", "success", 50*time.Millisecond, 300)
	collector.RecordDelivery("user", "next-chats-share", "success", 70*time.Millisecond, 310)
	collector.RecordDelivery("assistant", "widget", "failure", 0, 0)

	ok := testutil.ToFloat64(collector.deliveryMetrics.eventsTotal.WithLabelValues("user", "next-chats-share", "success"))
	if ok != 2 {
		t.Errorf("expected 2 successful user events, got %v", ok)
	}
	failed := testutil.ToFloat64(collector.deliveryMetrics.eventsTotal.WithLabelValues("assistant", "widget", "failure"))
	if failed != 1 {
		t.Errorf("expected 1 failed assistant event, got %v", failed)
	}
	if n := testutil.CollectAndCount(collector.deliveryMetrics.deliveryDuration); n != 1 {
		t.Errorf("expected one duration series (zero durations skipped), got %d", n)
	}
}

func TestCollector_InFlight(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.DeliveryStarted()
	collector.DeliveryStarted()
	collector.DeliveryFinished()

	if v := testutil.ToFloat64(collector.deliveryMetrics.inFlight); v != 1 {
		t.Errorf("expected 1 in flight, got %v", v)
	}
}

func TestCollector_CollectorHealth(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	if v := testutil.ToFloat64(collector.deliveryMetrics.collectorHealthy); v != 1 {
		t.Errorf("collector should start healthy, got %v", v)
	}

	collector.UpdateCollectorHealth(false)
	if v := testutil.ToFloat64(collector.deliveryMetrics.collectorHealthy); v != 0 {
		t.Errorf("expected unhealthy gauge, got %v", v)
	}
}

func TestCollector_RecordTokens(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordTokens("gpt-4", 10, 5)
	collector.RecordTokens("", 1, 0)

	if v := testutil.ToFloat64(collector.deliveryMetrics.tokensTotal.WithLabelValues("gpt-4", "prompt")); v != 10 {
		t.Errorf("expected 10 prompt tokens, got %v", v)
	}
	if v := testutil.ToFloat64(collector.deliveryMetrics.tokensTotal.WithLabelValues("unknown", "prompt")); v != 1 {
		t.Errorf("expected empty model recorded as unknown, got %v", v)
	}
}

func TestCollector_SessionMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordSessionEstablished("adopt")
	collector.RecordSessionEstablished("adopt")
	collector.RecordSessionEstablished("local")
	collector.RecordSessionReset()
	collector.UpdateConversations(7)
	collector.RecordEvicted(3)

	if v := testutil.ToFloat64(collector.sessionMetrics.established.WithLabelValues("adopt")); v != 2 {
		t.Errorf("expected 2 adopted sessions, got %v", v)
	}
	if v := testutil.ToFloat64(collector.sessionMetrics.resets); v != 1 {
		t.Errorf("expected 1 reset, got %v", v)
	}
	if v := testutil.ToFloat64(collector.sessionMetrics.conversations); v != 7 {
		t.Errorf("expected 7 conversations, got %v", v)
	}
	if v := testutil.ToFloat64(collector.sessionMetrics.evicted); v != 3 {
		t.Errorf("expected 3 evicted, got %v", v)
	}
}

func TestCollector_RelayMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordHTTPRequest("/v1/chats/{chatID}/messages", "200", 5*time.Millisecond)
	collector.StreamOpened()
	collector.StreamOpened()
	collector.StreamClosed()
	collector.RecordJournalWrite(nil)
	collector.RecordJournalWrite(errors.New("disk full"))
	collector.RecordPruned(12)

	if v := testutil.ToFloat64(collector.relayMetrics.httpRequests.WithLabelValues("/v1/chats/{chatID}/messages", "200")); v != 1 {
		t.Errorf("expected 1 request, got %v", v)
	}
	if v := testutil.ToFloat64(collector.relayMetrics.streamsActive); v != 1 {
		t.Errorf("expected 1 active stream, got %v", v)
	}
	if v := testutil.ToFloat64(collector.relayMetrics.journalWrites.WithLabelValues("error")); v != 1 {
		t.Errorf("expected 1 failed journal write, got %v", v)
	}
	if v := testutil.ToFloat64(collector.relayMetrics.journalPruned); v != 12 {
		t.Errorf("expected 12 pruned, got %v", v)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordDelivery("user", "s", "success", time.Millisecond, 1)

	if n := testutil.CollectAndCount(collector.deliveryMetrics.eventsTotal); n != 0 {
		t.Errorf("disabled collector should record nothing, got %d series", n)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	// None of these may panic.
	collector.RecordDelivery("user", "s", "success", time.Millisecond, 1)
	collector.RecordTokens("m", 1, 1)
	collector.DeliveryStarted()
	collector.DeliveryFinished()
	collector.UpdateCollectorHealth(true)
	collector.RecordSessionEstablished("adopt")
	collector.RecordSessionReset()
	collector.StreamOpened()
	collector.RecordJournalWrite(nil)
}

func TestCollector_SourceCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.sources = NewCardinalityLimiter(2)

	collector.RecordDelivery("user", "a", "success", 0, 0)
	collector.RecordDelivery("user", "b", "success", 0, 0)
	collector.RecordDelivery("user", "c", "success", 0, 0)

	if v := testutil.ToFloat64(collector.deliveryMetrics.eventsTotal.WithLabelValues("user", "other", "success")); v != 1 {
		t.Errorf("expected overflow source folded into other, got %v", v)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("first two label sets should be allowed")
	}
	if cl.Allow("c") {
		t.Error("third label set should be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known label set should remain allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("expected count 2, got %d", cl.Count())
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordDelivery("user", "next-chats-share", "success", 10*time.Millisecond, 100)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_relay_events_total") {
		t.Errorf("expected events metric in exposition, got:\n%s", rec.Body.String())
	}
}

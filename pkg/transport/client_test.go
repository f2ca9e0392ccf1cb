package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/secrets"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/trace"
)

// fakeCollector records requests and replies with a canned response.
type fakeCollector struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
	delay    time.Duration
}

type recordedRequest struct {
	path    string
	headers http.Header
	event   trace.Event
}

func (f *fakeCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var ev trace.Event
	_ = json.Unmarshal(raw, &ev)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{path: r.URL.Path, headers: r.Header.Clone(), event: ev})
	status, body, delay := f.status, f.body, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeCollector) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("collector received no requests")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeCollector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []*journal.Entry
}

func (f *fakeJournal) Record(e *journal.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func newServer(t *testing.T, fc *fakeCollector) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Success(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true,"traceId":"sess-123"}`}
	srv := newServer(t, fc)

	c := New(Options{})
	if err := c.Configure(srv.URL, "key-abc"); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	result := c.SendUserMessage(context.Background(), "ada@example.com", "hello", "chat-1", "")
	if !result.Success || result.TraceID != "sess-123" {
		t.Fatalf("unexpected result: %+v", result)
	}

	req := fc.last(t)
	if req.path != DefaultRoute {
		t.Errorf("expected path %q, got %q", DefaultRoute, req.path)
	}
	if got := req.headers.Get("x-api-key"); got != "key-abc" {
		t.Errorf("expected x-api-key header, got %q", got)
	}
	if got := req.headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("expected JSON content type, got %q", got)
	}
	if req.event.Role != trace.RoleUser || req.event.Metadata.ChatID != "chat-1" || req.event.Metadata.Source != trace.DefaultSource {
		t.Errorf("unexpected event: %+v", req.event)
	}
}

func TestSend_NoDuplicatedRoute(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{})
	if err := c.Configure(srv.URL+"/api/external/trace", ""); err != nil {
		t.Fatal(err)
	}

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	if got := fc.last(t).path; got != "/api/external/trace" {
		t.Errorf("route duplicated: %q", got)
	}
}

func TestSend_TraceURLVerbatim(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{})
	if err := c.ConfigureTraceURL(srv.URL+"/custom/ingest", ""); err != nil {
		t.Fatal(err)
	}

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	if got := fc.last(t).path; got != "/custom/ingest" {
		t.Errorf("expected verbatim path, got %q", got)
	}
}

func TestSend_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{})
	c.Configure(srv.URL, "")
	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")

	if _, ok := fc.last(t).headers["X-Api-Key"]; ok {
		t.Error("x-api-key header should be omitted without a key")
	}
}

func TestSend_KeySourceWins(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{KeySource: secrets.StaticSource("rotated")})
	c.Configure(srv.URL, "configured")
	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")

	if got := fc.last(t).headers.Get("x-api-key"); got != "rotated" {
		t.Errorf("expected key from key source, got %q", got)
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantError string
	}{
		{name: "server error", status: 500, body: "boom", wantError: "status 500"},
		{name: "json error body", status: 401, body: `{"error":"invalid api key"}`, wantError: "invalid api key"},
		{name: "empty error body", status: 503, wantError: "Service Unavailable"},
		{name: "collector reported failure", status: 200, body: `{"success":false,"error":"quota exceeded"}`, wantError: "quota exceeded"},
		{name: "success false without text", status: 200, body: `{"success":false}`, wantError: "collector reported failure"},
		{name: "undecodable body", status: 200, body: `<html>`, wantError: "serialization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCollector{status: tt.status, body: tt.body}
			srv := newServer(t, fc)

			c := New(Options{})
			c.Configure(srv.URL, "")

			result := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
			if result.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(result.Error, tt.wantError) {
				t.Errorf("expected error containing %q, got %q", tt.wantError, result.Error)
			}
		})
	}
}

func TestSend_EmptyBodyIsSuccess(t *testing.T) {
	fc := &fakeCollector{status: http.StatusNoContent}
	srv := newServer(t, fc)

	c := New(Options{})
	c.Configure(srv.URL, "")

	result := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	if !result.Success || result.TraceID != "" {
		t.Errorf("expected success without trace id, got %+v", result)
	}
}

func TestSend_Unconfigured(t *testing.T) {
	tests := []struct {
		name      string
		configure func(c *Client)
	}{
		{name: "never configured", configure: func(c *Client) {}},
		{name: "empty endpoint", configure: func(c *Client) { c.Configure("", "key") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Options{})
			tt.configure(c)

			start := time.Now()
			result := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
			if result.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(result.Error, "not configured") {
				t.Errorf("expected configuration error, got %q", result.Error)
			}
			if time.Since(start) > time.Second {
				t.Error("unconfigured send should fail fast")
			}
		})
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{})
	c.Configure(url, "")

	result := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	if result.Success || result.Error == "" {
		t.Errorf("expected failure with message, got %+v", result)
	}
}

func TestSend_Timeout(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`, delay: 300 * time.Millisecond}
	srv := newServer(t, fc)

	c := New(Options{Timeout: 50 * time.Millisecond})
	c.Configure(srv.URL, "")

	result := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("expected timeout message, got %q", result.Error)
	}
}

func TestSend_InvalidEvent(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{})
	c.Configure(srv.URL, "")

	result := c.Send(context.Background(), trace.Event{Email: "a@example.com", Role: "system", Metadata: trace.Metadata{ChatID: "c"}})
	if result.Success {
		t.Fatal("expected invalid role to fail")
	}
	if fc.count() != 0 {
		t.Error("invalid event must not reach the collector")
	}
}

func TestSend_RateLimited(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{RateLimit: 0.001, Burst: 1})
	c.Configure(srv.URL, "")

	first := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	second := c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")

	if !first.Success {
		t.Fatalf("first send should pass: %+v", first)
	}
	if second.Success || !strings.Contains(second.Error, "rate limited") {
		t.Errorf("second send should be rate limited, got %+v", second)
	}
	if fc.count() != 1 {
		t.Errorf("expected 1 request at the collector, got %d", fc.count())
	}
	if !c.Health().Healthy {
		t.Error("local rate limiting must not mark the collector unhealthy")
	}
}

func TestSend_AssistantEvent(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{Source: "chat-hook"})
	c.Configure(srv.URL, "")

	usage := &trace.Usage{PromptTokens: 10, CompletionTokens: 5}
	result := c.SendAssistantResponse(context.Background(), "a@example.com", "q", "a", "chat-1", "gpt-4", usage, "sess-1")
	if !result.Success {
		t.Fatalf("unexpected failure: %+v", result)
	}

	ev := fc.last(t).event
	if ev.Role != trace.RoleAssistant || ev.Response != "a" || ev.Metadata.Task != trace.TaskLLMResponse {
		t.Errorf("unexpected assistant event: %+v", ev)
	}
	if ev.Metadata.Source != "chat-hook" || ev.Metadata.SessionID != "sess-1" {
		t.Errorf("unexpected metadata: %+v", ev.Metadata)
	}
	if ev.Metadata.Usage == nil || ev.Metadata.Usage.TotalTokens != 15 {
		t.Errorf("expected derived total tokens, got %+v", ev.Metadata.Usage)
	}
}

func TestConfigure(t *testing.T) {
	c := New(Options{})

	if err := c.Configure("https://c.example.com", "k"); err != nil {
		t.Fatal(err)
	}
	if err := c.Configure("https://c.example.com", "k"); err != nil {
		t.Fatalf("repeated configure should be a no-op: %v", err)
	}
	if got := c.Endpoint(); got != "https://c.example.com/api/external/trace" {
		t.Errorf("unexpected endpoint %q", got)
	}

	err := c.Configure("not a url", "k")
	var cfgErr *trace.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if got := c.Endpoint(); got != "https://c.example.com/api/external/trace" {
		t.Errorf("failed configure must keep the previous endpoint, got %q", got)
	}
}

func TestHealth(t *testing.T) {
	fc := &fakeCollector{status: 500}
	srv := newServer(t, fc)

	c := New(Options{})
	c.Configure(srv.URL, "")

	for i := 0; i < UnhealthyThreshold-1; i++ {
		c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	}
	if !c.Health().Healthy {
		t.Fatal("should stay healthy below the threshold")
	}

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	h := c.Health()
	if h.Healthy || h.ConsecutiveFailures != UnhealthyThreshold {
		t.Fatalf("expected unhealthy after %d failures, got %+v", UnhealthyThreshold, h)
	}
	if err := c.CheckHealthy(context.Background()); err == nil {
		t.Error("CheckHealthy should fail while unhealthy")
	}

	fc.mu.Lock()
	fc.status, fc.body = 200, `{"success":true}`
	fc.mu.Unlock()

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	h = c.Health()
	if !h.Healthy || h.ConsecutiveFailures != 0 || h.FailedDeliveries != UnhealthyThreshold {
		t.Errorf("expected recovery, got %+v", h)
	}
}

func TestCheckConfigured(t *testing.T) {
	c := New(Options{})
	if err := c.CheckConfigured(context.Background()); err == nil {
		t.Error("expected error when unconfigured")
	}
	c.Configure("https://c.example.com", "")
	if err := c.CheckConfigured(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSend_Journal(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true,"traceId":"sess-9"}`}
	srv := newServer(t, fc)

	j := &fakeJournal{}
	c := New(Options{Journal: j})
	c.Configure(srv.URL, "")

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	New(Options{Journal: j}).SendUserMessage(context.Background(), "a@example.com", "hi", "chat-2", "")

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(j.entries))
	}

	ok := j.entries[0]
	if !ok.Success || ok.TraceID != "sess-9" || ok.StatusCode != 200 || ok.PayloadBytes == 0 {
		t.Errorf("unexpected success entry: %+v", ok)
	}

	failed := j.entries[1]
	if failed.Success || failed.ErrorKind != journal.KindConfiguration || failed.Error == "" {
		t.Errorf("unexpected failure entry: %+v", failed)
	}
}

func TestSend_TraceparentInjected(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	c := New(Options{})
	c.Configure(srv.URL, "")

	// A remote parent in the context is propagated even without a local SDK.
	ctx := contextWithRemoteParent(t)
	c.SendUserMessage(ctx, "a@example.com", "hi", "chat-1", "")

	if got := fc.last(t).headers.Get("traceparent"); !strings.HasPrefix(got, "00-4bf92f3577b34da6a3ce929d0e0e4736-") {
		t.Errorf("expected traceparent to be injected, got %q", got)
	}
}

func TestSend_Metrics(t *testing.T) {
	fc := &fakeCollector{body: `{"success":true}`}
	srv := newServer(t, fc)

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	c := New(Options{Metrics: collector})
	c.Configure(srv.URL, "")

	c.SendUserMessage(context.Background(), "a@example.com", "hi", "chat-1", "")
	c.SendAssistantResponse(context.Background(), "a@example.com", "hi", "hello", "chat-1", "gpt-4",
		&trace.Usage{PromptTokens: 3, CompletionTokens: 4}, "")

	n, err := testutil.GatherAndCount(collector.Registry(), "tracebridge_relay_events_total")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected a series per role, got %d", n)
	}

	n, err = testutil.GatherAndCount(collector.Registry(), "tracebridge_relay_tokens_total")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if n == 0 {
		t.Error("expected token usage to be recorded")
	}
}

func contextWithRemoteParent(t *testing.T) context.Context {
	t.Helper()

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := oteltrace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := oteltrace.SpanIDFromHex("00f067aa0ba902b7")
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: oteltrace.FlagsSampled,
		Remote:     true,
	})
	return oteltrace.ContextWithRemoteSpanContext(context.Background(), sc)
}

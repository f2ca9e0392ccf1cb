package correlator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/trace"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(&fakeSender{}, Options{})

	a := r.Get("ada@example.com", "chat-1")
	if r.Get("ada@example.com", "chat-1") != a {
		t.Error("same conversation should return the same correlator")
	}
	if r.Get("ada@example.com", "chat-2") == a {
		t.Error("different chat should return a different correlator")
	}
	if r.Get("bob@example.com", "chat-1") == a {
		t.Error("different user should return a different correlator")
	}
	if r.Len() != 3 {
		t.Errorf("expected 3 conversations, got %d", r.Len())
	}

	if a.Email() != "ada@example.com" || a.ChatID() != "chat-1" {
		t.Errorf("unexpected identity %q/%q", a.Email(), a.ChatID())
	}
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry(&fakeSender{}, Options{})

	c := r.Get("", " ")
	if c.Email() != trace.AnonymousEmail || c.ChatID() != trace.UnknownChatID {
		t.Errorf("expected defaults, got %q/%q", c.Email(), c.ChatID())
	}
	if r.Get(trace.AnonymousEmail, trace.UnknownChatID) != c {
		t.Error("explicit defaults should map to the same conversation")
	}
}

func TestRegistry_IndependentSessions(t *testing.T) {
	sender := &fakeSender{results: []trace.Result{trace.Succeeded("one"), trace.Succeeded("two")}}
	r := NewRegistry(sender, Options{})

	r.Get("a@example.com", "chat-1").TraceUserMessage(context.Background(), "hi")
	r.Get("a@example.com", "chat-2").TraceUserMessage(context.Background(), "hi")

	if got := r.Get("a@example.com", "chat-1").SessionID(); got != "one" {
		t.Errorf("chat-1: expected one, got %q", got)
	}
	if got := r.Get("a@example.com", "chat-2").SessionID(); got != "two" {
		t.Errorf("chat-2: expected two, got %q", got)
	}
}

func TestRegistry_LookupResetRemove(t *testing.T) {
	sender := &fakeSender{results: []trace.Result{trace.Succeeded("abc")}}
	r := NewRegistry(sender, Options{})

	if _, ok := r.Lookup("a@example.com", "chat-1"); ok {
		t.Fatal("lookup must not create conversations")
	}
	if r.Reset("a@example.com", "chat-1") {
		t.Error("reset of unknown conversation should report false")
	}

	c := r.Get("a@example.com", "chat-1")
	c.TraceUserMessage(context.Background(), "hi")

	if !r.Reset("a@example.com", "chat-1") {
		t.Fatal("reset should find the conversation")
	}
	if c.SessionID() != "" {
		t.Error("reset should clear the session")
	}

	if !r.Remove("a@example.com", "chat-1") {
		t.Fatal("remove should find the conversation")
	}
	if r.Remove("a@example.com", "chat-1") {
		t.Error("second remove should report false")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_EvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	sender := &fakeSender{}
	r := NewRegistry(sender, Options{Clock: clock.Now})

	r.Get("a@example.com", "old")
	clock.Advance(2 * time.Hour)
	active := r.Get("a@example.com", "active")
	clock.Advance(30 * time.Minute)
	active.TraceUserMessage(context.Background(), "hi")

	if n := r.EvictIdle(time.Hour); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := r.Lookup("a@example.com", "old"); ok {
		t.Error("idle conversation should be evicted")
	}
	if _, ok := r.Lookup("a@example.com", "active"); !ok {
		t.Error("active conversation should be kept")
	}
}

func TestRegistry_EvictIdleKeepsBusy(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	sender := &fakeSender{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	r := NewRegistry(sender, Options{Clock: clock.Now})

	c := r.Get("a@example.com", "chat-1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.TraceUserMessage(context.Background(), "hi")
	}()
	<-sender.entered

	clock.Advance(48 * time.Hour)
	if n := r.EvictIdle(time.Hour); n != 0 {
		t.Errorf("busy conversation must not be evicted, got %d", n)
	}

	close(sender.gate)
	<-done
}

func TestRegistry_Metrics(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	sender := &fakeSender{results: []trace.Result{trace.Succeeded("abc")}}
	r := NewRegistry(sender, Options{Metrics: collector})

	r.Get("a@example.com", "chat-1").TraceUserMessage(context.Background(), "hi")
	r.Get("a@example.com", "chat-2")
	r.Reset("a@example.com", "chat-1")

	expected := `
# HELP tracebridge_relay_conversations Number of conversations currently tracked
# TYPE tracebridge_relay_conversations gauge
tracebridge_relay_conversations 2
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "tracebridge_relay_conversations"); err != nil {
		t.Error(err)
	}

	n, err := testutil.GatherAndCount(collector.Registry(), "tracebridge_relay_session_resets_total")
	if err != nil || n != 1 {
		t.Errorf("expected reset counter to be exported, got %d (%v)", n, err)
	}
}

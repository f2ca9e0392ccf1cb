package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
)

type fakeStorage struct {
	mu      sync.Mutex
	entries []*Entry
	err     error
	block   chan struct{}
}

func (f *fakeStorage) Append(ctx context.Context, e *Entry) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStorage) Query(ctx context.Context, q *Query) ([]*Entry, error) { return nil, nil }
func (f *fakeStorage) Count(ctx context.Context, q *Query) (int64, error)    { return 0, nil }
func (f *fakeStorage) Delete(ctx context.Context, q *Query) (int64, error)   { return 0, nil }
func (f *fakeStorage) Trim(ctx context.Context, keep int64) (int64, error)   { return 0, nil }
func (f *fakeStorage) Ping(ctx context.Context) error                        { return nil }
func (f *fakeStorage) Close() error                                          { return nil }

func (f *fakeStorage) stored() []*Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Entry(nil), f.entries...)
}

func newCollector() *metrics.Collector {
	cfg := config.Default().Telemetry.Metrics
	return metrics.NewCollector(&cfg, nil)
}

// journalWrites reads tracebridge_relay_journal_writes_total{status}.
func journalWrites(t *testing.T, collector *metrics.Collector, status string) float64 {
	t.Helper()

	families, err := collector.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "tracebridge_relay_journal_writes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" && lp.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecorder_WritesAndFillsDefaults(t *testing.T) {
	store := &fakeStorage{}
	r := NewRecorder(store, &RecorderConfig{AsyncBuffer: 10, WriteTimeout: time.Second}, nil, nil)

	r.Record(&Entry{ChatID: "chat-1", Message: "hello", Response: "hi"})
	r.Close()

	entries := store.stored()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID == "" || e.RecordedAt.IsZero() {
		t.Errorf("expected id and timestamp to be filled: %+v", e)
	}
	if e.Message != "" || e.Response != "" {
		t.Errorf("message texts should be stripped: %+v", e)
	}
}

func TestRecorder_RecordMessages(t *testing.T) {
	store := &fakeStorage{}
	r := NewRecorder(store, &RecorderConfig{RecordMessages: true}, nil, nil)

	r.Record(&Entry{ChatID: "chat-1", Message: "hello"})
	r.Close()

	if entries := store.stored(); len(entries) != 1 || entries[0].Message != "hello" {
		t.Errorf("expected message to be kept, got %+v", entries)
	}
}

func TestRecorder_DrainsOnClose(t *testing.T) {
	store := &fakeStorage{}
	r := NewRecorder(store, &RecorderConfig{AsyncBuffer: 100}, nil, nil)

	for i := 0; i < 50; i++ {
		r.Record(&Entry{ChatID: "chat-1"})
	}
	r.Close()

	if got := len(store.stored()); got != 50 {
		t.Errorf("expected 50 entries after drain, got %d", got)
	}

	// Records after close are dropped
	r.Record(&Entry{ChatID: "chat-1"})
	if got := len(store.stored()); got != 50 {
		t.Errorf("expected no writes after close, got %d", got)
	}
}

func TestRecorder_BufferFull(t *testing.T) {
	store := &fakeStorage{block: make(chan struct{})}
	collector := newCollector()
	r := NewRecorder(store, &RecorderConfig{AsyncBuffer: 1}, collector, nil)

	// One entry held by the blocked worker, one in the buffer, the rest dropped.
	for i := 0; i < 5; i++ {
		r.Record(&Entry{ChatID: "chat-1"})
		time.Sleep(5 * time.Millisecond)
	}

	dropped := journalWrites(t, collector, "error")
	if dropped < 1 {
		t.Errorf("expected dropped entries to be counted, got %v", dropped)
	}

	close(store.block)
	r.Close()
}

func TestRecorder_StorageError(t *testing.T) {
	store := &fakeStorage{err: errors.New("disk full")}
	collector := newCollector()
	r := NewRecorder(store, nil, collector, nil)

	r.Record(&Entry{ChatID: "chat-1"})
	r.Close()

	if got := journalWrites(t, collector, "error"); got != 1 {
		t.Errorf("expected 1 failed write, got %v", got)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Record(&Entry{})
	if err := r.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestQuery_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name      string
		query     *Query
		wantField string
	}{
		{name: "nil", query: nil},
		{name: "empty", query: &Query{}},
		{name: "negative limit", query: &Query{Limit: -1}, wantField: "limit"},
		{name: "negative offset", query: &Query{Offset: -1}, wantField: "offset"},
		{name: "bad status", query: &Query{Status: "ok"}, wantField: "status"},
		{name: "inverted range", query: &Query{Since: &now, Until: &earlier}, wantField: "until"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var qe *QueryError
			if !errors.As(err, &qe) || qe.Field != tt.wantField {
				t.Errorf("expected QueryError on %q, got %v", tt.wantField, err)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	e := &Entry{ChatID: "chat-1", Email: "ada@example.com", Role: "user", SessionID: "s1", Success: false, RecordedAt: time.Now()}

	tests := []struct {
		name  string
		query *Query
		want  bool
	}{
		{"nil query", nil, true},
		{"chat match", &Query{ChatID: "chat-1"}, true},
		{"chat mismatch", &Query{ChatID: "chat-2"}, false},
		{"failure status", &Query{Status: StatusFailure}, true},
		{"success status", &Query{Status: StatusSuccess}, false},
		{"session and role", &Query{SessionID: "s1", Role: "user"}, true},
		{"email mismatch", &Query{Email: "bob@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(e); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

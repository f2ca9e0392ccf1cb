package journal

import (
	"context"
	"time"
)

// Error kinds recorded for failed deliveries.
const (
	KindConfiguration = "configuration"
	KindTransport     = "transport"
	KindSerialization = "serialization"
	KindRateLimited   = "rate_limited"
)

// Entry records one delivery attempt to the trace collector.
type Entry struct {
	// Identity
	ID         string    `json:"id"`          // UUID v4
	RecordedAt time.Time `json:"recorded_at"` // When the attempt finished

	// Event envelope
	ChatID    string `json:"chat_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Source    string `json:"source"`
	SessionID string `json:"session_id,omitempty"` // Session id sent with the event
	Model     string `json:"model,omitempty"`
	Message   string `json:"message,omitempty"`  // Only when message recording is enabled
	Response  string `json:"response,omitempty"` // Only when message recording is enabled

	// Outcome
	Endpoint     string        `json:"endpoint"`
	StatusCode   int           `json:"status_code"` // 0 when no response was received
	Success      bool          `json:"success"`
	TraceID      string        `json:"trace_id,omitempty"` // Id returned by the collector
	Error        string        `json:"error,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Latency      time.Duration `json:"latency"`
	PayloadBytes int           `json:"payload_bytes"`
}

// Query defines filter parameters for journal lookups.
type Query struct {
	// Time range
	Since *time.Time `json:"since,omitempty"` // Inclusive
	Until *time.Time `json:"until,omitempty"` // Inclusive

	// Filters
	ChatID    string `json:"chat_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Status is "success" or "failure"
	Status string `json:"status,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Ascending returns oldest entries first (default newest first)
	Ascending bool `json:"ascending,omitempty"`
}

// Status filter values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DefaultQueryLimit applies when Query.Limit is zero.
const DefaultQueryLimit = 100

// Storage defines the interface for journal backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Append persists one entry.
	Append(ctx context.Context, entry *Entry) error

	// Query returns entries matching the filters. Returns an empty slice if
	// nothing matches.
	Query(ctx context.Context, query *Query) ([]*Entry, error)

	// Count returns the number of entries matching the filters (pagination
	// is ignored).
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes entries matching the filters and returns how many
	// were removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Trim keeps the newest keep entries and removes the rest.
	Trim(ctx context.Context, keep int64) (int64, error)

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Matches reports whether e satisfies the filters of q. Pagination and
// ordering are not considered.
func (q *Query) Matches(e *Entry) bool {
	if q == nil {
		return true
	}
	if q.Since != nil && e.RecordedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.RecordedAt.After(*q.Until) {
		return false
	}
	if q.ChatID != "" && e.ChatID != q.ChatID {
		return false
	}
	if q.Email != "" && e.Email != q.Email {
		return false
	}
	if q.Role != "" && e.Role != q.Role {
		return false
	}
	if q.SessionID != "" && e.SessionID != q.SessionID {
		return false
	}
	switch q.Status {
	case StatusSuccess:
		return e.Success
	case StatusFailure:
		return !e.Success
	}
	return true
}

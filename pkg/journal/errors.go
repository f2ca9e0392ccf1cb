package journal

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when writing to a closed recorder or backend.
var ErrClosed = errors.New("journal closed")

// ErrBufferFull is reported to metrics when the recorder drops an entry.
var ErrBufferFull = errors.New("journal buffer full")

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Backend name ("sqlite3", "sqlite", "memory")
	Operation string // Operation that failed ("append", "query", "delete", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// QueryError represents an invalid query.
type QueryError struct {
	Field string
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid journal query [field=%s]: %v", e.Field, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Validate checks the query for values no backend can serve.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	if q.Limit < 0 {
		return &QueryError{Field: "limit", Cause: fmt.Errorf("must be non-negative, got %d", q.Limit)}
	}
	if q.Offset < 0 {
		return &QueryError{Field: "offset", Cause: fmt.Errorf("must be non-negative, got %d", q.Offset)}
	}
	switch q.Status {
	case "", StatusSuccess, StatusFailure:
	default:
		return &QueryError{Field: "status", Cause: fmt.Errorf("must be %q or %q, got %q", StatusSuccess, StatusFailure, q.Status)}
	}
	if q.Since != nil && q.Until != nil && q.Until.Before(*q.Since) {
		return &QueryError{Field: "until", Cause: errors.New("must not be before since")}
	}
	return nil
}

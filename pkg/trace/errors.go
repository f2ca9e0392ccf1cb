package trace

import (
	"fmt"
	"time"
)

// ConfigurationError is returned when no collector endpoint is configured or
// the configured endpoint cannot be used.
type ConfigurationError struct {
	// Field is the configuration input at fault (e.g. "endpoint").
	Field string

	// Message describes the problem
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("trace collector not configured (%s): %s", e.Field, e.Message)
}

// TransportError represents a failed delivery: network failure, timeout,
// non-2xx status, local rate limiting or a collector-reported failure.
type TransportError struct {
	// Endpoint is the URL the event was posted to
	Endpoint string

	// StatusCode is the HTTP status (0 if no response was received)
	StatusCode int

	// Message is the error text
	Message string

	// Timeout is set when the request exceeded its deadline
	Timeout time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Timeout > 0:
		return fmt.Sprintf("trace delivery to %s timed out after %s", e.Endpoint, e.Timeout)
	case e.StatusCode > 0:
		return fmt.Sprintf("trace delivery to %s failed (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("trace delivery to %s failed: %s: %v", e.Endpoint, e.Message, e.Cause)
	default:
		return fmt.Sprintf("trace delivery to %s failed: %s", e.Endpoint, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// SerializationError represents a payload that could not be encoded or a
// collector response that could not be decoded.
type SerializationError struct {
	// RawResponse is the undecodable response body, if any
	RawResponse string

	// Cause is the underlying encode/decode error
	Cause error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("trace serialization error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

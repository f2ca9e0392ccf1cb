package trace

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransportError(t *testing.T) {
	t.Run("with status code", func(t *testing.T) {
		err := &TransportError{Endpoint: "http://c/api", StatusCode: 502, Message: "bad gateway"}

		expected := "trace delivery to http://c/api failed (status 502): bad gateway"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("timeout", func(t *testing.T) {
		err := &TransportError{Endpoint: "http://c/api", Timeout: 5 * time.Second}

		if !strings.Contains(err.Error(), "timed out after 5s") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &TransportError{Endpoint: "http://c/api", Message: "request failed", Cause: cause}

		if !errors.Is(err, cause) {
			t.Error("expected error to wrap cause")
		}
	})
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Field: "endpoint", Message: "no collector URL"}

	expected := "trace collector not configured (endpoint): no collector URL"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestSerializationError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &SerializationError{RawResponse: "{", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected error to wrap cause")
	}
	if !strings.Contains(err.Error(), "unexpected end of JSON input") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

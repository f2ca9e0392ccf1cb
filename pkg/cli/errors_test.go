package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/tracebridge/pkg/config"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "with field",
			err:  NewConfigError("relay.listen_address", "missing required field"),
			want: "config error in relay.listen_address: missing required field",
		},
		{
			name: "without field",
			err:  NewConfigError("", "file not found"),
			want: "config error: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("run", underlyingErr)

	expected := "command run failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestConfigErrors(t *testing.T) {
	validation := config.ValidationError{Errors: []config.FieldError{
		{Field: "collector.base_url", Message: "must be an http or https URL"},
		{Field: "correlator.mint", Message: "must be one of adopt, local"},
	}}

	t.Run("validation error", func(t *testing.T) {
		errs := ConfigErrors(fmt.Errorf("load: %w", validation))
		if len(errs) != 2 {
			t.Fatalf("expected 2 errors, got %d", len(errs))
		}
		if errs[0].Field != "collector.base_url" || errs[1].Field != "correlator.mint" {
			t.Errorf("unexpected fields: %q, %q", errs[0].Field, errs[1].Field)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		errs := ConfigErrors(errors.New("permission denied"))
		if len(errs) != 1 || errs[0].Field != "" || errs[0].Message != "permission denied" {
			t.Errorf("unexpected errors: %+v", errs)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if errs := ConfigErrors(nil); errs != nil {
			t.Errorf("expected nil, got %+v", errs)
		}
	})
}

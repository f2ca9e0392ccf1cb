package main

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/tracebridge/pkg/cli"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		collector string
		extra     string
		wantErr   bool
		wantOut   []string
	}{
		{
			name:      "valid",
			collector: "https://collector.example.com",
			wantOut:   []string{"✓ Configuration valid"},
		},
		{
			name:    "no collector is still valid",
			wantOut: []string{"✓ Configuration valid"},
		},
		{
			name:      "every error is listed",
			collector: "ftp://collector.example.com",
			extra:     "correlator:\n  mint: sometimes\n",
			wantErr:   true,
			wantOut:   []string{"2 errors", "collector.base_url", "correlator.mint"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.collector, tt.extra)
			cmd, out := newTestCommand()

			err := validateConfig(cmd, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestShowConfigRedactsKey(t *testing.T) {
	writeConfig(t, "https://collector.example.com", "")
	cmd, out := newTestCommand()

	if err := showConfig(cmd, nil); err != nil {
		t.Fatalf("showConfig() error = %v", err)
	}

	if strings.Contains(out.String(), "test-key-123456") {
		t.Errorf("API key leaked into output:\n%s", out.String())
	}
	for _, want := range []string{"api_key: test***", "base_url: https://collector.example.com", "route: /api/external/trace", "timeout: 10s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestLoadConfigErrorIsConfigError(t *testing.T) {
	writeConfig(t, "not a url", "")

	_, err := loadConfig()
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

func TestRunDryRun(t *testing.T) {
	writeConfig(t, "https://collector.example.com", "")
	runFlags.dryRun = true
	defer func() { runFlags.dryRun = false }()

	cmd, out := newTestCommand()
	if err := runRelay(cmd, nil); err != nil {
		t.Fatalf("runRelay() error = %v", err)
	}
	if !strings.Contains(out.String(), "✓ Configuration valid") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRunRejectsBadListenOverride(t *testing.T) {
	writeConfig(t, "", "")
	runFlags.dryRun = true
	runFlags.listenAddress = "no-port"
	defer func() { runFlags.dryRun, runFlags.listenAddress = false, "" }()

	cmd, _ := newTestCommand()
	err := runRelay(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "relay.listen_address") {
		t.Fatalf("expected listen address error, got %v", err)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracebridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
collector:
  base_url: "https://analytics.example.com"
  api_key: "test-key-123"
  timeout: "5s"

correlator:
  mint: "local"

relay:
  listen_address: "0.0.0.0:8080"

journal:
  driver: "memory"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Collector.BaseURL != "https://analytics.example.com" {
		t.Errorf("expected base url, got %q", cfg.Collector.BaseURL)
	}
	if cfg.Collector.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Collector.Timeout)
	}
	if cfg.Correlator.Mint != "local" {
		t.Errorf("expected mint local, got %q", cfg.Correlator.Mint)
	}
	if cfg.Relay.ListenAddress != "0.0.0.0:8080" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:8080", cfg.Relay.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", cfg.Telemetry.Logging.Level)
	}

	// Defaults applied to absent keys
	if cfg.Collector.Route != DefaultCollectorRoute {
		t.Errorf("expected default route, got %q", cfg.Collector.Route)
	}
	if !cfg.Journal.Enabled {
		t.Error("journal.enabled should default to true when absent")
	}
}

func TestLoadConfig_ExplicitFalseKept(t *testing.T) {
	path := writeConfig(t, `
journal:
  enabled: false
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Journal.Enabled {
		t.Error("explicit journal.enabled=false was overwritten")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("explicit metrics.enabled=false was overwritten")
	}
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("empty path should yield defaults: %v", err)
	}
	if cfg.Relay.ListenAddress != DefaultListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Relay.ListenAddress)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{
			name:     "invalid yaml",
			content:  "collector: [unclosed",
			contains: "failed to parse",
		},
		{
			name: "invalid mint",
			content: `
correlator:
  mint: "random"
`,
			contains: "correlator.mint",
		},
		{
			name: "invalid collector url",
			content: `
collector:
  base_url: "ftp://example.com"
`,
			contains: "collector.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected error to contain %q, got %v", tt.contains, err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
collector:
  base_url: "https://file.example.com"
telemetry:
  logging:
    level: "info"
`)

	t.Setenv("EXTERNAL_TRACE_API_URL", "https://env.example.com")
	t.Setenv("EXTERNAL_TRACE_API_KEY", "env-key")
	t.Setenv("TRACEBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("TRACEBRIDGE_JOURNAL_ENABLED", "false")
	t.Setenv("TRACEBRIDGE_COLLECTOR_TIMEOUT", "2s")
	t.Setenv("TRACEBRIDGE_RELAY_AUTH_TOKENS", "tok-a,tok-b")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Collector.BaseURL != "https://env.example.com" {
		t.Errorf("env should override base url, got %q", cfg.Collector.BaseURL)
	}
	if cfg.Collector.APIKey != "env-key" {
		t.Errorf("expected api key from env, got %q", cfg.Collector.APIKey)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Journal.Enabled {
		t.Error("expected journal disabled by env")
	}
	if cfg.Collector.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Collector.Timeout)
	}
	if len(cfg.Relay.AuthTokens) != 2 || cfg.Relay.AuthTokens[1] != "tok-b" {
		t.Errorf("expected relay tokens from env, got %v", cfg.Relay.AuthTokens)
	}
}

func TestLoadConfigWithEnvOverrides_URLPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		apiURL string
		url    string
		want   string
	}{
		{name: "api url wins", apiURL: "https://a.example.com", url: "https://b.example.com", want: "https://a.example.com"},
		{name: "fallback url", url: "https://b.example.com", want: "https://b.example.com"},
		{name: "neither", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EXTERNAL_TRACE_API_URL", tt.apiURL)
			t.Setenv("EXTERNAL_TRACE_URL", tt.url)

			cfg, err := LoadConfigWithEnvOverrides("")
			if err != nil {
				t.Fatalf("failed to load config: %v", err)
			}
			if cfg.Collector.BaseURL != tt.want {
				t.Errorf("expected base url %q, got %q", tt.want, cfg.Collector.BaseURL)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides_MissingFileTolerated(t *testing.T) {
	t.Setenv("EXTERNAL_TRACE_ROUTE_URL", "https://c.example.com/custom/trace")

	cfg, err := LoadConfigWithEnvOverrides(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should be tolerated: %v", err)
	}
	if cfg.Collector.TraceURL != "https://c.example.com/custom/trace" {
		t.Errorf("expected trace url from env, got %q", cfg.Collector.TraceURL)
	}
}

func TestLoadConfigWithEnvOverrides_MalformedValue(t *testing.T) {
	t.Setenv("TRACEBRIDGE_COLLECTOR_TIMEOUT", "soon")

	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Fatal("expected malformed duration to be reported")
	}
}

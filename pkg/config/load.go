package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envOverrides is the environment surface recognised by LoadConfigWithEnvOverrides.
// The EXTERNAL_TRACE_* names are the ones chat deployments already export;
// TRACEBRIDGE_* cover the rest of the configuration. Pointer fields are nil
// when the variable is unset so an explicit "false" or "0" still overrides.
type envOverrides struct {
	// Collector endpoint and credentials
	APIURL     string `envconfig:"EXTERNAL_TRACE_API_URL"`
	URL        string `envconfig:"EXTERNAL_TRACE_URL"`
	RouteURL   string `envconfig:"EXTERNAL_TRACE_ROUTE_URL"`
	APIKey     string `envconfig:"EXTERNAL_TRACE_API_KEY"`
	APIKeyFile string `envconfig:"EXTERNAL_TRACE_API_KEY_FILE"`

	CollectorTimeout   *time.Duration `envconfig:"TRACEBRIDGE_COLLECTOR_TIMEOUT"`
	CollectorRateLimit *float64       `envconfig:"TRACEBRIDGE_COLLECTOR_RATE_LIMIT"`
	WatchKeyFile       *bool          `envconfig:"TRACEBRIDGE_COLLECTOR_WATCH_KEY_FILE"`

	CorrelatorSource string `envconfig:"TRACEBRIDGE_CORRELATOR_SOURCE"`
	CorrelatorMint   string `envconfig:"TRACEBRIDGE_CORRELATOR_MINT"`

	ListenAddress string   `envconfig:"TRACEBRIDGE_RELAY_LISTEN_ADDRESS"`
	AuthTokens    []string `envconfig:"TRACEBRIDGE_RELAY_AUTH_TOKENS"`

	JournalEnabled *bool  `envconfig:"TRACEBRIDGE_JOURNAL_ENABLED"`
	JournalDriver  string `envconfig:"TRACEBRIDGE_JOURNAL_DRIVER"`
	JournalPath    string `envconfig:"TRACEBRIDGE_JOURNAL_PATH"`
	RetentionDays  *int   `envconfig:"TRACEBRIDGE_JOURNAL_RETENTION_DAYS"`

	LogLevel           string   `envconfig:"TRACEBRIDGE_LOG_LEVEL"`
	LogFormat          string   `envconfig:"TRACEBRIDGE_LOG_FORMAT"`
	MetricsEnabled     *bool    `envconfig:"TRACEBRIDGE_METRICS_ENABLED"`
	TracingEnabled     *bool    `envconfig:"TRACEBRIDGE_TRACING_ENABLED"`
	TracingEndpoint    string   `envconfig:"TRACEBRIDGE_TRACING_ENDPOINT"`
	TracingSampleRatio *float64 `envconfig:"TRACEBRIDGE_TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads configuration from a YAML file at the specified path.
// Keys absent from the file keep their defaults. An empty path yields the
// default configuration. The result is validated; environment variables are
// not consulted (see LoadConfigWithEnvOverrides).
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. A missing file is not an error when the
// path is the implicit default: the service can run purely from environment.
//
// The loading sequence is:
// 1. Start from defaults
// 2. Decode YAML from file (if present)
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// environment only
		case err != nil:
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides decodes the environment and applies every variable that
// is set. Malformed values (e.g. a non-duration timeout) are reported rather
// than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	// EXTERNAL_TRACE_API_URL wins over the older EXTERNAL_TRACE_URL.
	switch {
	case env.APIURL != "":
		cfg.Collector.BaseURL = env.APIURL
	case env.URL != "":
		cfg.Collector.BaseURL = env.URL
	}
	if env.RouteURL != "" {
		cfg.Collector.TraceURL = env.RouteURL
	}
	if env.APIKey != "" {
		cfg.Collector.APIKey = env.APIKey
	}
	if env.APIKeyFile != "" {
		cfg.Collector.APIKeyFile = env.APIKeyFile
	}
	if env.CollectorTimeout != nil {
		cfg.Collector.Timeout = *env.CollectorTimeout
	}
	if env.CollectorRateLimit != nil {
		cfg.Collector.RateLimit = *env.CollectorRateLimit
	}
	if env.WatchKeyFile != nil {
		cfg.Collector.WatchKeyFile = *env.WatchKeyFile
	}

	if env.CorrelatorSource != "" {
		cfg.Correlator.Source = env.CorrelatorSource
	}
	if env.CorrelatorMint != "" {
		cfg.Correlator.Mint = env.CorrelatorMint
	}

	if env.ListenAddress != "" {
		cfg.Relay.ListenAddress = env.ListenAddress
	}
	if len(env.AuthTokens) > 0 {
		cfg.Relay.AuthTokens = env.AuthTokens
	}

	if env.JournalEnabled != nil {
		cfg.Journal.Enabled = *env.JournalEnabled
	}
	if env.JournalDriver != "" {
		cfg.Journal.Driver = env.JournalDriver
	}
	if env.JournalPath != "" {
		cfg.Journal.Path = env.JournalPath
	}
	if env.RetentionDays != nil {
		cfg.Journal.Retention.Days = *env.RetentionDays
	}

	if env.LogLevel != "" {
		cfg.Telemetry.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Telemetry.Logging.Format = env.LogFormat
	}
	if env.MetricsEnabled != nil {
		cfg.Telemetry.Metrics.Enabled = *env.MetricsEnabled
	}
	if env.TracingEnabled != nil {
		cfg.Telemetry.Tracing.Enabled = *env.TracingEnabled
	}
	if env.TracingEndpoint != "" {
		cfg.Telemetry.Tracing.Endpoint = env.TracingEndpoint
	}
	if env.TracingSampleRatio != nil {
		cfg.Telemetry.Tracing.SampleRatio = *env.TracingSampleRatio
	}

	return nil
}

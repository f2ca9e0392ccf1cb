package config

import "time"

// Config is the root configuration structure for tracebridge.
// It contains the collector endpoint, correlation policy, relay server,
// delivery journal and telemetry settings.
type Config struct {
	// Collector contains the external trace collector endpoint, credentials
	// and delivery limits.
	Collector CollectorConfig `yaml:"collector"`

	// Correlator contains the session identifier policy applied to every
	// conversation.
	Correlator CorrelatorConfig `yaml:"correlator"`

	// Relay contains the HTTP/WebSocket server the hosting chat UI notifies.
	Relay RelayConfig `yaml:"relay"`

	// Journal contains configuration for the local record of delivery
	// attempts, including backend selection and retention.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CollectorConfig contains configuration for the external trace collector.
type CollectorConfig struct {
	// BaseURL is the collector base URL. The trace route is appended unless
	// the URL already ends with it.
	// Example: "https://analytics.example.com"
	BaseURL string `yaml:"base_url"`

	// TraceURL is an explicit full trace URL. When set it is used verbatim
	// and BaseURL/Route are ignored.
	TraceURL string `yaml:"trace_url"`

	// Route is the collector's trace route.
	// Default: "/api/external/trace"
	Route string `yaml:"route"`

	// APIKey is sent in the x-api-key header when non-empty.
	APIKey string `yaml:"api_key"`

	// APIKeyFile is a file holding the API key. Takes precedence over APIKey.
	APIKeyFile string `yaml:"api_key_file"`

	// WatchKeyFile reloads APIKeyFile when it changes on disk.
	// Default: false
	WatchKeyFile bool `yaml:"watch_key_file"`

	// Timeout is the maximum duration of one delivery.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit caps deliveries per second (0 = unlimited). Deliveries over
	// the limit fail immediately instead of queuing.
	// Default: 0
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the rate limiter bucket size.
	// Default: 50
	Burst int `yaml:"burst"`
}

// CorrelatorConfig contains the session identifier policy.
type CorrelatorConfig struct {
	// Source tags every event with the call site that produced it.
	// Default: "next-chats-share"
	Source string `yaml:"source"`

	// Mint selects how session identifiers are established.
	// Options: "adopt" (use the collector's returned traceId), "local"
	// (generate a UUID before the first event)
	// Default: "adopt"
	Mint string `yaml:"mint"`

	// IdleTimeout evicts conversations with no activity for this long
	// (negative = never).
	// Default: 24h
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// EvictSchedule is a cron expression for idle eviction.
	// Default: "*/15 * * * *"
	EvictSchedule string `yaml:"evict_schedule"`
}

// RelayConfig contains configuration for the relay HTTP server.
type RelayConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size for trace notifications.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// AllowedOrigins lists the origins allowed to open the WebSocket stream.
	// Empty or ["*"] allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxStreams caps concurrent WebSocket streams.
	// Default: 100
	MaxStreams int `yaml:"max_streams"`

	// AuthTokens are the tokens accepted on the chat routes, presented as
	// "Authorization: Bearer", X-Relay-Token or ?token=. Empty disables
	// authentication. Probes and metrics are never authenticated.
	AuthTokens []string `yaml:"auth_tokens"`
}

// JournalConfig contains configuration for the delivery journal.
type JournalConfig struct {
	// Enabled controls whether delivery attempts are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Driver selects the backend.
	// Options: "sqlite3" (mattn, cgo), "sqlite" (modernc, pure Go), "memory"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path for SQLite drivers.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// RecordMessages stores message and response texts in the journal.
	// Default: false
	RecordMessages bool `yaml:"record_messages"`

	// Retention controls pruning of old entries.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains journal retention settings.
type RetentionConfig struct {
	// Days is the number of days entries are kept (negative = forever).
	// Default: 30
	Days int `yaml:"days"`

	// MaxEntries caps the journal size (0 = unlimited). Oldest entries are
	// removed first.
	// Default: 0
	MaxEntries int64 `yaml:"max_entries"`

	// Schedule is a cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks emails and API keys in log fields.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "tracebridge"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "relay"
	Subsystem string `yaml:"subsystem"`

	// DeliveryDurationBuckets defines histogram buckets for collector
	// round trips (seconds).
	// Default: [0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	DeliveryDurationBuckets []float64 `yaml:"delivery_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "tracebridge"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

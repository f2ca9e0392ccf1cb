package config

import "time"

// Default values for configuration fields.
const (
	// Collector defaults
	DefaultCollectorRoute   = "/api/external/trace"
	DefaultCollectorTimeout = 10 * time.Second
	DefaultCollectorBurst   = 50

	// Correlator defaults
	DefaultCorrelatorSource        = "next-chats-share"
	DefaultCorrelatorMint          = "adopt"
	DefaultCorrelatorIdleTimeout   = 24 * time.Hour
	DefaultCorrelatorEvictSchedule = "*/15 * * * *"

	// Relay defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = int64(1048576)
	DefaultMaxStreams      = 100

	// Journal defaults
	DefaultJournalEnabled     = true
	DefaultJournalDriver      = "sqlite"
	DefaultJournalPath        = "data/journal.db"
	DefaultJournalMaxOpen     = 4
	DefaultJournalWALMode     = true
	DefaultJournalBusyTimeout = 5 * time.Second
	DefaultRetentionDays      = 30
	DefaultRetentionSchedule  = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultPrometheusPath   = "/metrics"
	DefaultMetricsNamespace = "tracebridge"
	DefaultMetricsSubsystem = "relay"
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 1.0
	DefaultTracingService   = "tracebridge"
	DefaultOTLPTimeout      = 10 * time.Second
)

// DefaultDeliveryDurationBuckets are histogram buckets tuned for collector
// round trips (10ms - 10s).
var DefaultDeliveryDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Default returns a Config populated with every default, including the
// boolean ones that ApplyDefaults cannot tell apart from an explicit false.
// LoadConfig decodes YAML on top of this value so absent keys keep their
// defaults.
func Default() *Config {
	cfg := &Config{
		Journal: JournalConfig{
			Enabled: DefaultJournalEnabled,
			WALMode: DefaultJournalWALMode,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				RedactPII: DefaultLoggingRedactPII,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				OTLP: OTLPConfig{Insecure: true},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Collector defaults
	if cfg.Collector.Route == "" {
		cfg.Collector.Route = DefaultCollectorRoute
	}
	if cfg.Collector.Timeout == 0 {
		cfg.Collector.Timeout = DefaultCollectorTimeout
	}
	if cfg.Collector.Burst == 0 {
		cfg.Collector.Burst = DefaultCollectorBurst
	}

	// Correlator defaults
	if cfg.Correlator.Source == "" {
		cfg.Correlator.Source = DefaultCorrelatorSource
	}
	if cfg.Correlator.Mint == "" {
		cfg.Correlator.Mint = DefaultCorrelatorMint
	}
	if cfg.Correlator.IdleTimeout == 0 {
		cfg.Correlator.IdleTimeout = DefaultCorrelatorIdleTimeout
	}
	if cfg.Correlator.EvictSchedule == "" {
		cfg.Correlator.EvictSchedule = DefaultCorrelatorEvictSchedule
	}

	// Relay defaults
	if cfg.Relay.ListenAddress == "" {
		cfg.Relay.ListenAddress = DefaultListenAddress
	}
	if cfg.Relay.ReadTimeout == 0 {
		cfg.Relay.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Relay.WriteTimeout == 0 {
		cfg.Relay.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Relay.IdleTimeout == 0 {
		cfg.Relay.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Relay.ShutdownTimeout == 0 {
		cfg.Relay.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Relay.MaxHeaderBytes == 0 {
		cfg.Relay.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Relay.MaxBodyBytes == 0 {
		cfg.Relay.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Relay.MaxStreams == 0 {
		cfg.Relay.MaxStreams = DefaultMaxStreams
	}

	// Journal defaults
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = DefaultJournalDriver
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.MaxOpenConns == 0 {
		cfg.Journal.MaxOpenConns = DefaultJournalMaxOpen
	}
	if cfg.Journal.BusyTimeout == 0 {
		cfg.Journal.BusyTimeout = DefaultJournalBusyTimeout
	}
	if cfg.Journal.Retention.Days == 0 {
		cfg.Journal.Retention.Days = DefaultRetentionDays
	}
	if cfg.Journal.Retention.Schedule == "" {
		cfg.Journal.Retention.Schedule = DefaultRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DeliveryDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DeliveryDurationBuckets = append([]float64(nil), DefaultDeliveryDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}

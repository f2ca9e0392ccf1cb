// Package config provides configuration management for tracebridge.
//
// This package handles loading, validating, and defaulting configuration from
// YAML files with environment variable overrides. There is no global
// configuration: callers load a *Config once and pass it to the components
// they construct.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("tracebridge.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("tracebridge.yaml")
//
// In the second form a missing file is tolerated and the configuration is
// built from defaults and environment alone.
//
// # Environment Variable Overrides
//
// The collector endpoint uses the names chat deployments already export:
//
//   - EXTERNAL_TRACE_API_URL: collector base URL (preferred)
//   - EXTERNAL_TRACE_URL: collector base URL (fallback)
//   - EXTERNAL_TRACE_ROUTE_URL: full trace URL, used verbatim
//   - EXTERNAL_TRACE_API_KEY / EXTERNAL_TRACE_API_KEY_FILE: credentials
//
// Everything else follows TRACEBRIDGE_SECTION_FIELD, for example
// TRACEBRIDGE_RELAY_LISTEN_ADDRESS or TRACEBRIDGE_LOG_LEVEL.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every FieldError before failing. A missing collector
// endpoint is not an error here; the transport reports it per send.
package config

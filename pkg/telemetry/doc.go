// Package telemetry groups the observability layers of tracebridge.
//
// # Components
//
//   - logging: slog-based structured logging with PII redaction and
//     correlation fields (request, chat, session, trace ids)
//   - metrics: Prometheus collectors for deliveries, sessions and the relay
//   - tracing: OpenTelemetry spans with W3C propagation to the collector
//   - health: liveness, readiness and version endpoints
//
// Every component is optional. A nil *metrics.Collector or *tracing.Tracer
// is a valid no-op, so packages accept them without guarding.
//
// # Usage
//
//	log, _ := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stdout))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	client := transport.New(transport.Options{
//		Logger:  log.Slog(),
//		Metrics: collector,
//		Tracer:  tracer,
//	})
//
// # PII Protection
//
// Trace events carry user emails and raw chat text. With redaction enabled
// (the default) log output masks them:
//
//   - Emails: ada@example.com → a***@example.com
//   - Credentials: sk-abc123xyz → sk-a***
//   - Message and response fields: logged as their length only
//
// Custom redaction patterns can be configured.
package telemetry

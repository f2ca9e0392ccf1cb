// Package tracing provides OpenTelemetry distributed tracing for tracebridge.
//
// # Overview
//
// Every delivery to the trace collector runs inside a "trace.deliver" span
// whose W3C traceparent is injected into the outgoing request. The relay
// extracts traceparent from inbound requests, so a chat UI that is itself
// instrumented sees one connected trace from the browser to the collector.
//
// Spans carry chat id, role, source, session id and model. Emails and chat
// text are never attached.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces (default, ratio 1.0)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "trace.deliver",
//	    trace.WithAttributes(tracing.EventAttributes("user", chatID, source, sessionID, "")...))
//	defer span.End()
//	tracing.Inject(ctx, req.Header)
//
// When tracing is disabled New returns a noop tracer, but W3C propagation is
// still installed so an upstream traceparent is forwarded unchanged.
package tracing

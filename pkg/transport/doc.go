// Package transport delivers trace events to the external trace collector.
//
// A Client posts one JSON event per call to the collector's trace route
// (default "/api/external/trace") with an optional x-api-key header and the
// W3C traceparent of the sending span. It never retries; every outcome,
// including a missing configuration, is reported as a trace.Result rather
// than a Go error.
//
// # Endpoint Resolution
//
// Configure takes a base URL and appends the route unless the URL already
// ends with it:
//
//	https://collector.example.com             -> https://collector.example.com/api/external/trace
//	https://collector.example.com/api/external/trace -> unchanged
//
// ConfigureTraceURL takes a full trace URL and uses it verbatim.
//
// # Usage
//
//	client := transport.New(transport.Options{
//	    Timeout: 10 * time.Second,
//	    Logger:  logger,
//	    Metrics: collector,
//	    Journal: recorder,
//	})
//	if err := client.Configure(os.Getenv("EXTERNAL_TRACE_API_URL"), os.Getenv("EXTERNAL_TRACE_API_KEY")); err != nil {
//	    return err
//	}
//
//	result := client.SendUserMessage(ctx, "ada@example.com", "hello", "chat-42", "")
//	if !result.Success {
//	    logger.Warn("trace not delivered", "error", result.Error)
//	}
//
// # Health
//
// The client counts consecutive transport and serialization failures and
// reports the collector unhealthy after UnhealthyThreshold of them. Local
// rate limiting and missing configuration do not affect health. CheckHealthy
// and CheckConfigured plug into the readiness checker.
package transport

// Tracebridge correlates chat conversations with an external trace
// collector.
//
// It accepts user messages and completed assistant turns from a hosting chat
// UI, delivers each one to the collector's trace route and keeps every event
// of a conversation under one session identifier, providing:
//   - An HTTP and WebSocket relay for chat front ends
//   - Per-conversation session correlation with reset support
//   - A local journal of delivery attempts with scheduled retention
//   - Prometheus metrics, OpenTelemetry spans and readiness probes
//
// Usage:
//
//	# Start the relay with default configuration
//	tracebridge run
//
//	# Start with a custom configuration file
//	tracebridge run --config /etc/tracebridge/config.yaml
//
//	# Deliver a single user message
//	tracebridge send --email ada@example.com --chat chat-1 "hello"
//
//	# Inspect failed deliveries
//	tracebridge journal query --status failure
//
//	# Check a configuration file
//	tracebridge config validate --config config.yaml
package main

func main() {
	Execute()
}

// Package metrics provides Prometheus metrics collection for tracebridge.
//
// # Metrics Categories
//
//   - Delivery: events by role/source/status, collector latency, payload
//     size, in-flight sends, reported tokens and collector health
//   - Session: session ids established (adopted or minted), resets,
//     tracked and evicted conversations
//   - Relay: inbound HTTP requests, open WebSocket streams, journal writes
//     and retention pruning
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDelivery("assistant", "next-chats-share", "success", rtt, size)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector is valid and records nothing.
//
// # Cardinality
//
// The source and model labels come from callers. Each is capped at 1000
// distinct values; later values are reported as "other".
package metrics

package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Emails and chat text are never attached to spans.
const (
	AttrChatID    = "tracebridge.chat_id"
	AttrRole      = "tracebridge.role"
	AttrSource    = "tracebridge.source"
	AttrSessionID = "tracebridge.session_id"
	AttrModel     = "tracebridge.model"

	AttrTokensPrompt     = "tracebridge.tokens.prompt"
	AttrTokensCompletion = "tracebridge.tokens.completion"
	AttrTokensTotal      = "tracebridge.tokens.total"

	AttrEndpoint     = "tracebridge.collector.endpoint"
	AttrStatusCode   = "tracebridge.collector.status_code"
	AttrTraceID      = "tracebridge.collector.trace_id"
	AttrPayloadBytes = "tracebridge.payload_bytes"
	AttrErrorKind    = "tracebridge.error_kind"

	AttrSessionAdopted = "tracebridge.session.adopted"
	AttrSessionReset   = "tracebridge.session.reset"
)

// EventAttributes returns the attributes identifying one trace event.
// Empty values are omitted.
func EventAttributes(role, chatID, source, sessionID, model string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRole, role),
		attribute.String(AttrChatID, chatID),
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrSource, source))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrModel, model))
	}
	return attrs
}

// SetTokenAttributes sets usage counts on a span.
func SetTokenAttributes(span trace.Span, promptTokens, completionTokens, totalTokens int) {
	span.SetAttributes(
		attribute.Int(AttrTokensPrompt, promptTokens),
		attribute.Int(AttrTokensCompletion, completionTokens),
		attribute.Int(AttrTokensTotal, totalTokens),
	)
}

// SetDeliveryAttributes records the collector's answer on a span.
// statusCode is zero when no HTTP response was received.
func SetDeliveryAttributes(span trace.Span, endpoint string, statusCode int, traceID string, payloadBytes int) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrEndpoint, endpoint),
		attribute.Int(AttrPayloadBytes, payloadBytes),
	}
	if statusCode != 0 {
		attrs = append(attrs, attribute.Int(AttrStatusCode, statusCode))
	}
	if traceID != "" {
		attrs = append(attrs, attribute.String(AttrTraceID, traceID))
	}
	span.SetAttributes(attrs...)
}

// AddEvent adds a named event to a span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

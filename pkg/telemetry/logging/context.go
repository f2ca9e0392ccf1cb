package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for relay request IDs.
	RequestIDKey contextKey = "request_id"

	// ChatIDKey is the context key for conversation identifiers.
	ChatIDKey contextKey = "chat_id"

	// SessionIDKey is the context key for trace session identifiers.
	SessionIDKey contextKey = "session_id"

	// EmailKey is the context key for the user's email.
	EmailKey contextKey = "email"

	// TraceIDKey is the context key for OpenTelemetry trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithChatID adds a conversation identifier to the context.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, ChatIDKey, chatID)
}

// GetChatID retrieves the conversation identifier from the context.
func GetChatID(ctx context.Context) string {
	return stringValue(ctx, ChatIDKey)
}

// WithSessionID adds a trace session identifier to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the trace session identifier from the context.
func GetSessionID(ctx context.Context) string {
	return stringValue(ctx, SessionIDKey)
}

// WithEmail adds the user's email to the context. It is masked on output
// when redaction is enabled.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, email)
}

// GetEmail retrieves the user's email from the context.
func GetEmail(ctx context.Context) string {
	return stringValue(ctx, EmailKey)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the correlation fields present in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	for _, key := range []contextKey{RequestIDKey, ChatIDKey, SessionIDKey, EmailKey, TraceIDKey} {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}

	return attrs
}

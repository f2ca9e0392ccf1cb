package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/trace"
)

// maxErrorBody bounds how much of a non-2xx body is quoted in errors.
const maxErrorBody = 256

// attempt collects what one delivery observed.
type attempt struct {
	event        trace.Event
	endpoint     string
	statusCode   int
	payloadBytes int
	traceID      string
	err          error
	latency      time.Duration
}

// Send posts ev to the collector. Any failure is returned as
// Result{Success:false, Error}; Send never panics and never blocks beyond
// the configured timeout.
func (c *Client) Send(ctx context.Context, ev trace.Event) trace.Result {
	ctx, span := c.opts.Tracer.Start(ctx, "trace.deliver",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(tracing.EventAttributes(
			string(ev.Role), ev.Metadata.ChatID, ev.Metadata.Source, ev.Metadata.SessionID, ev.Metadata.Model)...),
	)
	defer span.End()

	c.opts.Metrics.DeliveryStarted()
	defer c.opts.Metrics.DeliveryFinished()

	start := time.Now()
	a := c.deliver(ctx, ev)
	a.latency = time.Since(start)

	c.observe(ctx, span, a)

	if a.err != nil {
		return trace.Failure(a.err)
	}
	return trace.Succeeded(a.traceID)
}

// SendUserMessage builds a user event and sends it.
func (c *Client) SendUserMessage(ctx context.Context, email, message, chatID, sessionID string) trace.Result {
	return c.Send(ctx, trace.UserMessage(email, message, chatID, c.opts.Source, sessionID))
}

// SendAssistantResponse builds an assistant event and sends it.
func (c *Client) SendAssistantResponse(ctx context.Context, email, message, response, chatID, model string, usage *trace.Usage, sessionID string) trace.Result {
	return c.Send(ctx, trace.AssistantResponse(email, message, response, chatID, c.opts.Source, model, usage, sessionID))
}

func (c *Client) deliver(ctx context.Context, ev trace.Event) attempt {
	endpoint, configuredKey := c.snapshot()
	a := attempt{event: ev, endpoint: endpoint}

	if endpoint == "" {
		a.err = &trace.ConfigurationError{Field: "endpoint", Message: "no collector endpoint configured (set EXTERNAL_TRACE_API_URL)"}
		return a
	}

	if err := ev.Validate(); err != nil {
		a.err = err
		return a
	}

	body, err := json.Marshal(ev)
	if err != nil {
		a.err = &trace.SerializationError{Cause: err}
		return a
	}
	a.payloadBytes = len(body)

	if !c.limiter.Allow() {
		a.err = &trace.TransportError{Endpoint: endpoint, Message: "rate limited locally", Cause: errRateLimited}
		return a
	}

	apiKey, err := c.resolveKey(ctx, configuredKey)
	if err != nil {
		a.err = &trace.ConfigurationError{Field: "api_key", Message: err.Error()}
		return a
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(body)
	if apiKey != "" {
		req.SetHeader("x-api-key", apiKey)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := req.Post(endpoint)
	if err != nil {
		a.err = c.classifyRequestError(endpoint, err)
		return a
	}

	a.statusCode = resp.StatusCode()
	respBody := resp.Body()

	if !resp.IsSuccess() {
		a.err = &trace.TransportError{
			Endpoint:   endpoint,
			StatusCode: a.statusCode,
			Message:    errorText(respBody, http.StatusText(a.statusCode)),
		}
		return a
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return a
	}

	var result trace.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		a.err = &trace.SerializationError{RawResponse: truncate(string(respBody), maxErrorBody), Cause: err}
		return a
	}

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "collector reported failure"
		}
		a.err = &trace.TransportError{Endpoint: endpoint, StatusCode: a.statusCode, Message: msg}
		return a
	}

	a.traceID = result.TraceID
	return a
}

var errRateLimited = errors.New("delivery rate limit exceeded")

func (c *Client) classifyRequestError(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &trace.TransportError{Endpoint: endpoint, Timeout: c.opts.Timeout, Cause: err}
	}
	return &trace.TransportError{Endpoint: endpoint, Message: "request failed", Cause: err}
}

// observe reports the attempt to health tracking, metrics, the span, the
// journal and the log.
func (c *Client) observe(ctx context.Context, span oteltrace.Span, a attempt) {
	kind := errorKind(a.err)
	ev := a.event

	if kind == journal.KindTransport || kind == journal.KindSerialization {
		c.recordFailure(a.err)
	} else if a.err == nil {
		c.recordSuccess()
	}

	status := "success"
	switch {
	case kind == journal.KindConfiguration:
		status = "unconfigured"
	case a.err != nil:
		status = "failure"
	}
	c.opts.Metrics.RecordDelivery(string(ev.Role), ev.Metadata.Source, status, a.latency, a.payloadBytes)
	c.opts.Metrics.UpdateCollectorHealth(c.Health().Healthy)
	if u := ev.Metadata.Usage; u != nil && a.err == nil {
		c.opts.Metrics.RecordTokens(ev.Metadata.Model, u.PromptTokens, u.CompletionTokens)
		tracing.SetTokenAttributes(span, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	}

	tracing.SetDeliveryAttributes(span, a.endpoint, a.statusCode, a.traceID, a.payloadBytes)
	if a.err != nil {
		span.SetAttributes(attribute.String(tracing.AttrErrorKind, kind))
		if errors.Is(a.err, errRateLimited) {
			tracing.AddEvent(span, "delivery.rate_limited")
		}
		tracing.SetError(span, a.err)
	}
	tracing.SetStatus(span, a.err)

	if c.opts.Journal != nil {
		entry := &journal.Entry{
			ChatID:       ev.Metadata.ChatID,
			Email:        ev.Email,
			Role:         string(ev.Role),
			Source:       ev.Metadata.Source,
			SessionID:    ev.Metadata.SessionID,
			Model:        ev.Metadata.Model,
			Message:      ev.Message,
			Response:     ev.Response,
			Endpoint:     a.endpoint,
			StatusCode:   a.statusCode,
			Success:      a.err == nil,
			TraceID:      a.traceID,
			ErrorKind:    kind,
			Latency:      a.latency,
			PayloadBytes: a.payloadBytes,
		}
		if a.err != nil {
			entry.Error = a.err.Error()
		}
		c.opts.Journal.Record(entry)
	}

	if a.err != nil {
		c.logger.WarnContext(ctx, "trace delivery failed",
			"role", ev.Role,
			"chat_id", ev.Metadata.ChatID,
			"error_kind", kind,
			"status_code", a.statusCode,
			"error", a.err,
		)
		return
	}

	c.logger.DebugContext(ctx, "trace delivered",
		"role", ev.Role,
		"chat_id", ev.Metadata.ChatID,
		"session_id", ev.Metadata.SessionID,
		"trace_id", a.traceID,
		"latency_ms", a.latency.Milliseconds(),
	)
}

// errorKind maps an error onto the journal's error kinds.
func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var cfgErr *trace.ConfigurationError
	var serErr *trace.SerializationError
	var trErr *trace.TransportError

	switch {
	case errors.As(err, &cfgErr):
		return journal.KindConfiguration
	case errors.As(err, &serErr):
		return journal.KindSerialization
	case errors.Is(err, errRateLimited):
		return journal.KindRateLimited
	case errors.As(err, &trErr):
		return journal.KindTransport
	default:
		return journal.KindTransport
	}
}

// errorText extracts a readable message from a non-2xx body: the "error"
// field of a JSON body when present, else the trimmed raw text.
func errorText(body []byte, fallback string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallback
	}

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(trimmed, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}

	return truncate(strings.ToValidUTF8(string(trimmed), ""), maxErrorBody)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}

package correlator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/trace"
)

// Sender delivers trace events. *transport.Client satisfies it.
type Sender interface {
	SendUserMessage(ctx context.Context, email, message, chatID, sessionID string) trace.Result
	SendAssistantResponse(ctx context.Context, email, message, response, chatID, model string, usage *trace.Usage, sessionID string) trace.Result
}

// Correlator owns the session identifier of one conversation and traces its
// user messages and assistant responses.
//
// Calls are serialized in call order, so a user message traced before its
// assistant response reaches the collector first. Separate Correlators are
// independent.
type Correlator struct {
	sender Sender
	opts   Options
	logger *slog.Logger

	// sendMu serializes deliveries.
	sendMu sync.Mutex

	// mu guards the fields below. It is never held across a send.
	mu           sync.Mutex
	session      trace.Session
	established  bool
	epoch        uint64
	resetPending bool
	lastActive   time.Time

	inFlight atomic.Int32
}

// New creates a Correlator for one conversation.
func New(sender Sender, opts Options) *Correlator {
	opts = opts.withDefaults()
	return &Correlator{
		sender:     sender,
		opts:       opts,
		logger:     opts.Logger.With("component", "correlator", "chat_id", opts.ChatID),
		lastActive: opts.Clock(),
	}
}

// TraceUserMessage traces a user message tagged with the current session
// identifier. Under MintAdopt, a traceId returned for the first delivered
// event becomes the session identifier.
//
// Failures are returned as Result{Success:false}; the session identifier is
// left unchanged and nothing is retried.
func (c *Correlator) TraceUserMessage(ctx context.Context, text string) trace.Result {
	return c.trace(ctx, trace.RoleUser, "", func(ctx context.Context, sessionID string) trace.Result {
		return c.sender.SendUserMessage(ctx, c.opts.Email, text, c.opts.ChatID, sessionID)
	})
}

// TraceAssistantResponse traces a completed assistant turn carrying both the
// originating user text and the response. A returned traceId is adopted only
// when no session identifier is set yet.
func (c *Correlator) TraceAssistantResponse(ctx context.Context, userText, responseText, model string, usage *trace.Usage) trace.Result {
	return c.trace(ctx, trace.RoleAssistant, model, func(ctx context.Context, sessionID string) trace.Result {
		return c.sender.SendAssistantResponse(ctx, c.opts.Email, userText, responseText, c.opts.ChatID, model, usage, sessionID)
	})
}

// ResetSession clears the session identifier so the next event establishes
// a fresh one. It does not wait for an in-flight send; that send's result is
// never adopted.
func (c *Correlator) ResetSession() {
	c.mu.Lock()
	previous := c.session.ID
	c.epoch++
	c.session = trace.Session{}
	c.established = false
	c.resetPending = true
	c.lastActive = c.opts.Clock()
	c.mu.Unlock()

	c.opts.Metrics.RecordSessionReset()
	c.logger.Debug("trace session reset", "previous_session_id", previous)
}

// IsTracing reports whether a trace call is in flight or waiting its turn.
func (c *Correlator) IsTracing() bool {
	return c.inFlight.Load() > 0
}

// SessionID returns the current session identifier ("" when none is set).
func (c *Correlator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Session returns the current session and whether one is established.
func (c *Correlator) Session() (trace.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.established
}

// Email returns the user the conversation belongs to.
func (c *Correlator) Email() string {
	return c.opts.Email
}

// ChatID returns the conversation identifier.
func (c *Correlator) ChatID() string {
	return c.opts.ChatID
}

// LastActive returns the time of the last trace call or reset.
func (c *Correlator) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

type sendFunc func(ctx context.Context, sessionID string) trace.Result

func (c *Correlator) trace(ctx context.Context, role trace.Role, model string, send sendFunc) trace.Result {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	sessionID, epoch, afterReset := c.begin()

	ctx, span := c.opts.Tracer.Start(ctx, "trace.correlate",
		oteltrace.WithAttributes(tracing.EventAttributes(string(role), c.opts.ChatID, "", sessionID, model)...),
	)
	defer span.End()
	span.SetAttributes(attribute.Bool(tracing.AttrSessionReset, afterReset))

	result := send(ctx, sessionID)

	adopted := c.settle(result, epoch)
	span.SetAttributes(attribute.Bool(tracing.AttrSessionAdopted, adopted))
	if !result.Success {
		c.logger.Debug("trace not delivered", "role", role, "error", result.Error)
	}

	return result
}

// begin returns the identifier to tag the next event with, minting one
// under MintLocal when none is set.
func (c *Correlator) begin() (sessionID string, epoch uint64, afterReset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Clock()
	c.lastActive = now
	afterReset = c.resetPending

	if !c.established && c.opts.Mint == MintLocal {
		c.session = trace.Session{ID: c.opts.NewID(), CreatedAt: now}
		c.established = true
		c.resetPending = false
		c.opts.Metrics.RecordSessionEstablished(string(MintLocal))
		c.logger.Debug("trace session minted", "session_id", c.session.ID)
	}

	return c.session.ID, c.epoch, afterReset
}

// settle adopts the collector's traceId when no identifier is set and no
// reset happened since the call began. It reports whether the id was adopted.
func (c *Correlator) settle(result trace.Result, epoch uint64) bool {
	if !result.Success || result.TraceID == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		c.logger.Debug("discarding trace id returned after session reset", "trace_id", result.TraceID)
		return false
	}
	if c.established {
		return false
	}

	c.session = trace.Session{ID: result.TraceID, CreatedAt: c.opts.Clock()}
	c.established = true
	c.resetPending = false
	c.opts.Metrics.RecordSessionEstablished(string(MintAdopt))
	c.logger.Debug("trace session adopted", "session_id", result.TraceID)

	return true
}

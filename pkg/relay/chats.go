package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mercator-hq/tracebridge/pkg/correlator"
	"mercator-hq/tracebridge/pkg/telemetry/logging"
	"mercator-hq/tracebridge/pkg/trace"
)

// userMessageRequest notifies the relay that the user submitted a message.
type userMessageRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	Async   bool   `json:"async,omitempty"`
}

// assistantResponseRequest notifies the relay that an assistant turn
// completed.
type assistantResponseRequest struct {
	Email    string       `json:"email"`
	Message  string       `json:"message"`
	Response string       `json:"response"`
	Model    string       `json:"model,omitempty"`
	Usage    *trace.Usage `json:"usage,omitempty"`
	Async    bool         `json:"async,omitempty"`
}

// traceResponse is the outcome of a synchronous trace. A failed delivery is
// still answered with 200; the failure is in the body.
type traceResponse struct {
	trace.Result
	ChatID    string `json:"chatId"`
	SessionID string `json:"sessionId,omitempty"`
}

// acceptedResponse answers an asynchronous trace request.
type acceptedResponse struct {
	Accepted bool   `json:"accepted"`
	ChatID   string `json:"chatId"`
}

type sessionResponse struct {
	ChatID      string     `json:"chatId"`
	Email       string     `json:"email"`
	SessionID   string     `json:"sessionId,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Established bool       `json:"established"`
	Tracing     bool       `json:"tracing"`
}

type resetResponse struct {
	ChatID string `json:"chatId"`
	Reset  bool   `json:"reset"`
}

func (s *Server) handleUserMessage(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")

	var req userMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	c := s.registry.Get(req.Email, chatID)
	ctx := conversationContext(r.Context(), c)

	if req.Async {
		s.goAsync(ctx, func(ctx context.Context) { c.TraceUserMessage(ctx, req.Message) })
		writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, ChatID: c.ChatID()})
		return
	}

	result := c.TraceUserMessage(ctx, req.Message)
	writeJSON(w, http.StatusOK, traceResponse{Result: result, ChatID: c.ChatID(), SessionID: c.SessionID()})
}

func (s *Server) handleAssistantResponse(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")

	var req assistantResponseRequest
	if !s.decode(w, r, &req) {
		return
	}

	c := s.registry.Get(req.Email, chatID)
	ctx := conversationContext(r.Context(), c)

	send := func(ctx context.Context) trace.Result {
		return c.TraceAssistantResponse(ctx, req.Message, req.Response, req.Model, req.Usage)
	}

	if req.Async {
		s.goAsync(ctx, func(ctx context.Context) { send(ctx) })
		writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, ChatID: c.ChatID()})
		return
	}

	result := send(ctx)
	writeJSON(w, http.StatusOK, traceResponse{Result: result, ChatID: c.ChatID(), SessionID: c.SessionID()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	email := r.URL.Query().Get("email")

	c, ok := s.registry.Lookup(email, chatID)
	if !ok {
		writeError(w, http.StatusNotFound, errorTypeNotFound, fmt.Sprintf("conversation %q is not tracked", chatID))
		return
	}

	session, established := c.Session()
	resp := sessionResponse{
		ChatID:      c.ChatID(),
		Email:       c.Email(),
		SessionID:   session.ID,
		Established: established,
		Tracing:     c.IsTracing(),
	}
	if established {
		resp.CreatedAt = &session.CreatedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleResetSession is idempotent: resetting an untracked conversation
// answers 200 with reset=false.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	email := r.URL.Query().Get("email")

	found := s.registry.Reset(email, chatID)
	s.logger.DebugContext(r.Context(), "session reset requested", "chat_id", chatID, "found", found)

	writeJSON(w, http.StatusOK, resetResponse{ChatID: chatID, Reset: found})
}

// decode reads a JSON body into v, answering 400 or 413 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorTypeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, errorTypeInvalidRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func conversationContext(ctx context.Context, c *correlator.Correlator) context.Context {
	ctx = logging.WithChatID(ctx, c.ChatID())
	ctx = logging.WithEmail(ctx, c.Email())
	if id := c.SessionID(); id != "" {
		ctx = logging.WithSessionID(ctx, id)
	}
	return ctx
}

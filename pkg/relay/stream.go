package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/trace"
)

// Stream frame types.
const (
	FrameUser      = "user"
	FrameAssistant = "assistant"
	FrameReset     = "reset"
	FrameAck       = "ack"
	FrameError     = "error"
)

// closeGracePeriod bounds the close frame write at shutdown.
const closeGracePeriod = time.Second

// streamFrame is one notification from the chat UI.
type streamFrame struct {
	Type     string       `json:"type"`
	ChatID   string       `json:"chatId"`
	Email    string       `json:"email"`
	Message  string       `json:"message,omitempty"`
	Response string       `json:"response,omitempty"`
	Model    string       `json:"model,omitempty"`
	Usage    *trace.Usage `json:"usage,omitempty"`

	// TraceParent joins the delivery span to the UI's own trace; browsers
	// cannot set headers per WebSocket message.
	TraceParent string `json:"traceparent,omitempty"`
}

// streamAck answers every frame, in order.
type streamAck struct {
	Type      string        `json:"type"`
	ChatID    string        `json:"chatId,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Result    *trace.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// streamHub admits up to a fixed number of streams and closes them all on
// shutdown.
type streamHub struct {
	sem chan struct{}

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

func newStreamHub(maxStreams int) *streamHub {
	return &streamHub{
		sem:   make(chan struct{}, maxStreams),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *streamHub) acquire() bool {
	select {
	case h.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *streamHub) release() {
	<-h.sem
}

func (h *streamHub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *streamHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(closeGracePeriod))
		_ = conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(origin, s.config.AllowedOrigins)
		},
	}
}

// handleStream upgrades to a WebSocket and traces each frame in order.
// Returns 503 when MaxStreams streams are already open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.streams.acquire() {
		writeError(w, http.StatusServiceUnavailable, errorTypeInternal, "too many open streams")
		return
	}
	defer s.streams.release()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !s.streams.add(conn) {
		return
	}
	defer s.streams.remove(conn)

	if s.config.MaxBodyBytes > 0 {
		conn.SetReadLimit(s.config.MaxBodyBytes)
	}

	s.opts.Metrics.StreamOpened()
	defer s.opts.Metrics.StreamClosed()

	ctx := context.WithoutCancel(r.Context())
	s.logger.DebugContext(ctx, "stream opened", "remote_addr", r.RemoteAddr)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.DebugContext(ctx, "stream closed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			if err := conn.WriteJSON(streamAck{Type: FrameError, Error: "expected a text frame"}); err != nil {
				return
			}
			continue
		}

		ack := s.handleFrame(ctx, data)
		if err := conn.WriteJSON(ack); err != nil {
			s.logger.DebugContext(ctx, "stream write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, data []byte) streamAck {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return streamAck{Type: FrameError, Error: fmt.Sprintf("invalid frame: %v", err)}
	}
	ctx = tracing.ExtractTraceParent(ctx, frame.TraceParent)

	switch frame.Type {
	case FrameUser:
		c := s.registry.Get(frame.Email, frame.ChatID)
		result := c.TraceUserMessage(conversationContext(ctx, c), frame.Message)
		return streamAck{Type: FrameAck, ChatID: c.ChatID(), SessionID: c.SessionID(), Result: &result}

	case FrameAssistant:
		c := s.registry.Get(frame.Email, frame.ChatID)
		result := c.TraceAssistantResponse(conversationContext(ctx, c), frame.Message, frame.Response, frame.Model, frame.Usage)
		return streamAck{Type: FrameAck, ChatID: c.ChatID(), SessionID: c.SessionID(), Result: &result}

	case FrameReset:
		s.registry.Reset(frame.Email, frame.ChatID)
		result := trace.Succeeded("")
		return streamAck{Type: FrameAck, ChatID: frame.ChatID, Result: &result}

	default:
		return streamAck{Type: FrameError, ChatID: frame.ChatID, Error: fmt.Sprintf("unknown frame type %q", frame.Type)}
	}
}

package trace

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced the traced message.
type Role string

const (
	// RoleUser marks an event for a message the user submitted.
	RoleUser Role = "user"
	// RoleAssistant marks an event for a completed assistant turn.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the collector accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Defaults used when the hosting UI cannot identify the user or chat.
const (
	// AnonymousEmail is sent when no user identifier is known.
	AnonymousEmail = "anonymous"

	// UnknownChatID is sent when the conversation has no identifier yet.
	UnknownChatID = "unknown"

	// DefaultSource tags events produced by the shared chat page.
	DefaultSource = "next-chats-share"

	// TaskLLMResponse is the task tag carried by assistant events.
	TaskLLMResponse = "llm_response"
)

// Session is the per-conversation correlation identifier.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Usage carries optional token accounting for an assistant response.
type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens,omitempty"`
}

// Normalized returns a copy with TotalTokens derived from the prompt and
// completion counts when the caller did not provide it.
func (u Usage) Normalized() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// IsZero reports whether no token counts are set.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Metadata is the correlation envelope attached to every event.
type Metadata struct {
	ChatID    string   `json:"chatId"`
	Source    string   `json:"source"`
	SessionID string   `json:"sessionId,omitempty"`
	Model     string   `json:"model,omitempty"`
	Task      string   `json:"task,omitempty"`
	Usage     *Usage   `json:"usage,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Event is one record of a user message or assistant response sent to the
// collector. Events are built once and never modified afterwards.
type Event struct {
	Email    string   `json:"email"`
	Message  string   `json:"message"`
	Role     Role     `json:"role"`
	Response string   `json:"response,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Validate checks the fields the collector requires.
func (e Event) Validate() error {
	if !e.Role.Valid() {
		return &SerializationError{Cause: fmt.Errorf("invalid role %q", e.Role)}
	}
	if strings.TrimSpace(e.Email) == "" {
		return &SerializationError{Cause: fmt.Errorf("email is required")}
	}
	if strings.TrimSpace(e.Metadata.ChatID) == "" {
		return &SerializationError{Cause: fmt.Errorf("metadata.chatId is required")}
	}
	return nil
}

// UserMessage builds a user-role event.
func UserMessage(email, message, chatID, source, sessionID string) Event {
	return Event{
		Email:   orDefault(email, AnonymousEmail),
		Message: message,
		Role:    RoleUser,
		Metadata: Metadata{
			ChatID:    orDefault(chatID, UnknownChatID),
			Source:    orDefault(source, DefaultSource),
			SessionID: sessionID,
		},
	}
}

// AssistantResponse builds an assistant-role event carrying both the
// originating user text and the response text.
func AssistantResponse(email, message, response, chatID, source, model string, usage *Usage, sessionID string) Event {
	var u *Usage
	if usage != nil && !usage.IsZero() {
		n := usage.Normalized()
		u = &n
	}
	return Event{
		Email:    orDefault(email, AnonymousEmail),
		Message:  message,
		Role:     RoleAssistant,
		Response: response,
		Metadata: Metadata{
			ChatID:    orDefault(chatID, UnknownChatID),
			Source:    orDefault(source, DefaultSource),
			SessionID: sessionID,
			Model:     model,
			Task:      TaskLLMResponse,
			Usage:     u,
		},
	}
}

// Result is the outcome of delivering one event.
type Result struct {
	Success bool   `json:"success"`
	TraceID string `json:"traceId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(traceID string) Result {
	return Result{Success: true, TraceID: traceID}
}

// Failure converts err into an unsuccessful result. The error text is never
// empty so callers can always surface something.
func Failure(err error) Result {
	msg := "trace delivery failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result{Success: false, Error: msg}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

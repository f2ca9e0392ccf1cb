package correlator

import (
	"strings"
	"sync"
	"time"

	"mercator-hq/tracebridge/pkg/trace"
)

type conversationKey struct {
	email  string
	chatID string
}

func newKey(email, chatID string) conversationKey {
	if strings.TrimSpace(email) == "" {
		email = trace.AnonymousEmail
	}
	if strings.TrimSpace(chatID) == "" {
		chatID = trace.UnknownChatID
	}
	return conversationKey{email: email, chatID: chatID}
}

// Registry hands out one Correlator per (email, chatID) conversation. All
// Correlators share the registry's Sender and option template.
type Registry struct {
	sender   Sender
	template Options

	mu            sync.Mutex
	conversations map[conversationKey]*Correlator
}

// NewRegistry creates an empty registry. Email and ChatID in opts are
// ignored; they are set per conversation.
func NewRegistry(sender Sender, opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		sender:        sender,
		template:      opts,
		conversations: make(map[conversationKey]*Correlator),
	}
}

// Get returns the Correlator for a conversation, creating it on first use.
// An empty email or chatID selects "anonymous" or "unknown".
func (r *Registry) Get(email, chatID string) *Correlator {
	key := newKey(email, chatID)

	r.mu.Lock()
	c, ok := r.conversations[key]
	if !ok {
		opts := r.template
		opts.Email = key.email
		opts.ChatID = key.chatID
		c = New(r.sender, opts)
		r.conversations[key] = c
	}
	n := len(r.conversations)
	r.mu.Unlock()

	if !ok {
		r.template.Metrics.UpdateConversations(n)
	}
	return c
}

// Lookup returns the Correlator for a conversation without creating it.
func (r *Registry) Lookup(email, chatID string) (*Correlator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[newKey(email, chatID)]
	return c, ok
}

// Reset resets the session of a tracked conversation. It reports whether the
// conversation was found.
func (r *Registry) Reset(email, chatID string) bool {
	c, ok := r.Lookup(email, chatID)
	if !ok {
		return false
	}
	c.ResetSession()
	return true
}

// Remove stops tracking a conversation. It reports whether the conversation
// was found.
func (r *Registry) Remove(email, chatID string) bool {
	r.mu.Lock()
	key := newKey(email, chatID)
	_, ok := r.conversations[key]
	delete(r.conversations, key)
	n := len(r.conversations)
	r.mu.Unlock()

	if ok {
		r.template.Metrics.UpdateConversations(n)
	}
	return ok
}

// Len returns the number of tracked conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conversations)
}

// EvictIdle removes conversations with no activity for longer than maxIdle
// and returns how many were removed. Conversations with a trace call in
// flight are kept.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.template.Clock().Add(-maxIdle)

	r.mu.Lock()
	evicted := 0
	for key, c := range r.conversations {
		if c.IsTracing() || c.LastActive().After(cutoff) {
			continue
		}
		delete(r.conversations, key)
		evicted++
	}
	n := len(r.conversations)
	r.mu.Unlock()

	if evicted > 0 {
		r.template.Metrics.UpdateConversations(n)
	}
	return evicted
}

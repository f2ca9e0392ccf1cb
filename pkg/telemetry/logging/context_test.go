package logging

import (
	"context"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithChatID(ctx, "chat-1")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithEmail(ctx, "ada@example.com")
	ctx = WithTraceID(ctx, "0af7651916cd43dd8448eb211c80319c")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetChatID(ctx); got != "chat-1" {
		t.Errorf("GetChatID() = %q", got)
	}
	if got := GetSessionID(ctx); got != "sess-1" {
		t.Errorf("GetSessionID() = %q", got)
	}
	if got := GetEmail(ctx); got != "ada@example.com" {
		t.Errorf("GetEmail() = %q", got)
	}
	if got := GetTraceID(ctx); got != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("GetTraceID() = %q", got)
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()

	if GetRequestID(ctx) != "" || GetChatID(ctx) != "" || GetSessionID(ctx) != "" {
		t.Error("expected empty values from bare context")
	}
}

func TestContextAttrs(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want map[string]string
	}{
		{
			name: "none",
			ctx:  context.Background(),
			want: map[string]string{},
		},
		{
			name: "chat and session",
			ctx:  WithSessionID(WithChatID(context.Background(), "c"), "s"),
			want: map[string]string{"chat_id": "c", "session_id": "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := contextAttrs(tt.ctx)
			if len(attrs) != len(tt.want) {
				t.Fatalf("expected %d attrs, got %d", len(tt.want), len(attrs))
			}
			for _, a := range attrs {
				if tt.want[a.Key] != a.Value.String() {
					t.Errorf("attr %s = %q, want %q", a.Key, a.Value.String(), tt.want[a.Key])
				}
			}
		})
	}
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithChatID(context.Background(), "first")
	ctx = WithChatID(ctx, "second")

	if got := GetChatID(ctx); got != "second" {
		t.Errorf("expected latest value, got %q", got)
	}
}

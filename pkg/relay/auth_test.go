package relay

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/tracebridge/pkg/config"
)

func TestTokenAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := TokenAuthMiddleware([]string{"relay-secret", " other "}, testLogger())(ok)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{name: "no token", prepare: func(r *http.Request) {}, wantCode: http.StatusUnauthorized},
		{name: "bearer", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer relay-secret") }, wantCode: http.StatusNoContent},
		{name: "bearer lowercase scheme", prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer other") }, wantCode: http.StatusNoContent},
		{name: "basic scheme ignored", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic relay-secret") }, wantCode: http.StatusUnauthorized},
		{name: "relay header", prepare: func(r *http.Request) { r.Header.Set("X-Relay-Token", "relay-secret") }, wantCode: http.StatusNoContent},
		{name: "query parameter", prepare: func(r *http.Request) { r.URL.RawQuery = "token=relay-secret" }, wantCode: http.StatusNoContent},
		{name: "wrong token", prepare: func(r *http.Request) { r.Header.Set("X-Relay-Token", "guess") }, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/stream", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestTokenAuthMiddlewareDisabled(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	TokenAuthMiddleware([]string{"", "  "}, testLogger())(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("expected requests to pass when no tokens are configured")
	}
}

func TestServerRequiresToken(t *testing.T) {
	_, ts := newTestServer(t, &fakeSender{}, func(cfg *config.RelayConfig, _ *Options) {
		cfg.AuthTokens = []string{"relay-secret"}
	})

	resp, body := do(t, http.MethodGet, ts.URL+"/v1/chats/chat-1/session", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if errBody, _ := body["error"].(map[string]any); errBody["type"] != errorTypeAuthentication {
		t.Errorf("unexpected error body: %v", body)
	}

	resp, _ = do(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected probes to stay open, got %d", resp.StatusCode)
	}
}

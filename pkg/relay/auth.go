package relay

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// tokenSource names one place a relay token may be presented.
type tokenSource struct {
	header string // header name
	scheme string // optional scheme prefix, e.g. "Bearer"
	query  string // query parameter name
}

// tokenSources are tried in order. Browsers cannot set headers on a
// WebSocket upgrade, so the stream falls back to the query parameter.
var tokenSources = []tokenSource{
	{header: "Authorization", scheme: "Bearer"},
	{header: "X-Relay-Token"},
	{query: "token"},
}

// TokenAuthMiddleware rejects requests that do not present one of tokens.
// An empty token list disables authentication.
func TokenAuthMiddleware(tokens []string, logger *slog.Logger) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractToken(r)
			if !ok {
				logger.WarnContext(r.Context(), "missing relay token",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, errorTypeAuthentication, "missing relay token")
				return
			}

			if !tokenAccepted([]byte(token), accepted) {
				logger.WarnContext(r.Context(), "invalid relay token",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, errorTypeAuthentication, "invalid relay token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	for _, source := range tokenSources {
		var value string
		if source.query != "" {
			value = r.URL.Query().Get(source.query)
		} else {
			value = r.Header.Get(source.header)
		}
		if value == "" {
			continue
		}

		if source.scheme != "" {
			prefix := source.scheme + " "
			if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
				continue
			}
			value = value[len(prefix):]
		}
		return strings.TrimSpace(value), true
	}
	return "", false
}

// tokenAccepted compares against every token so timing does not reveal
// which one matched.
func tokenAccepted(token []byte, accepted [][]byte) bool {
	match := 0
	for _, a := range accepted {
		match |= subtle.ConstantTimeCompare(token, a)
	}
	return match == 1
}

package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/tracebridge/pkg/config"
)

// Redactor masks personal data and credentials in log fields. Trace events
// carry user emails and raw chat text, and the collector key travels in a
// header, so all three must never reach log output verbatim.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternEmail       = "email"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// defaultPatterns are applied to every string value, in order.
var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{
		name:        PatternBearerToken,
		regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
		replacement: "Bearer ***",
	},
	{
		name:        PatternAPIKey,
		regex:       `(?i)(sk-[a-zA-Z0-9]+|(x-)?api[-_]?key[-_:=]\s*[a-zA-Z0-9\-_]+)`,
		replacement: "api_key=***",
	},
	{
		name:        PatternEmail,
		regex:       `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		replacement: "***@***",
	},
	{
		name:        PatternPassword,
		regex:       `(password|passwd|pwd)[:=]\s*[^\s]+`,
		replacement: "$1: ***",
	},
}

// credentialKeys are field names whose values are masked outright.
var credentialKeys = []string{
	"password", "passwd", "secret", "access_token", "auth_token",
	"api_key", "apikey", "x-api-key", "authorization",
}

// emailKeys are field names whose values are partially masked.
var emailKeys = []string{"email", "user"}

// contentKeys are field names holding chat text; only the length is logged.
var contentKeys = []string{"message", "response", "prompt", "completion"}

// NewRedactor creates a new Redactor with default and custom patterns.
// Custom patterns that fail to compile are skipped; config validation
// reports them earlier.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}

	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}

	return redacted
}

// RedactArgs redacts PII from variadic log arguments.
// Args are in the form: key1, value1, key2, value2, ...
func (r *Redactor) RedactArgs(args ...any) []any {
	if r == nil || len(args) == 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(redacted); i++ {
		switch v := redacted[i].(type) {
		case slog.Attr:
			redacted[i] = r.RedactAttr(v)
		case string:
			if i+1 < len(redacted) {
				redacted[i+1] = r.redactField(v, redacted[i+1])
				i++
			}
		}
	}

	return redacted
}

// RedactAttr redacts a single slog attribute, descending into groups.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if r == nil {
		return a
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	v := r.redactField(a.Key, a.Value.Resolve().Any())
	return slog.Any(a.Key, v)
}

// redactField masks value according to key, falling back to pattern
// matching for strings under non-sensitive keys.
func (r *Redactor) redactField(key string, value any) any {
	lowerKey := strings.ToLower(key)

	switch {
	case matchesAny(lowerKey, credentialKeys):
		return redactValue(value)
	case matchesExact(lowerKey, emailKeys):
		if s, ok := value.(string); ok {
			return RedactEmail(s)
		}
	case matchesExact(lowerKey, contentKeys):
		if s, ok := value.(string); ok {
			return fmt.Sprintf("[%d chars]", len(s))
		}
	}

	switch v := value.(type) {
	case string:
		return r.RedactString(v)
	case error:
		return r.RedactString(v.Error())
	}
	return value
}

func matchesAny(key string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(key, c) {
			return true
		}
	}
	return false
}

func matchesExact(key string, candidates []string) bool {
	for _, c := range candidates {
		if key == c {
			return true
		}
	}
	return false
}

// redactValue masks a credential completely, keeping at most a short prefix.
func redactValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return "***"
	}
	return RedactAPIKey(s)
}

// RedactEmail redacts an email address partially (shows first char and domain).
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	username := parts[0]
	domain := parts[1]

	if len(username) == 0 {
		return "***@" + domain
	}

	return string(username[0]) + "***@" + domain
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}

	return apiKey[:4] + "***"
}

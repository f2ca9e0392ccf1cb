package correlator

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/trace"
)

// Mint selects how a conversation's session identifier is established.
type Mint string

const (
	// MintAdopt takes the traceId returned by the collector for the first
	// successfully delivered event.
	MintAdopt Mint = "adopt"

	// MintLocal generates a UUID before the first event is sent. A traceId
	// returned by the collector never replaces it.
	MintLocal Mint = "local"
)

// ParseMint parses a mint policy name. An empty name selects MintAdopt.
func ParseMint(s string) (Mint, error) {
	switch Mint(strings.ToLower(strings.TrimSpace(s))) {
	case "", MintAdopt:
		return MintAdopt, nil
	case MintLocal:
		return MintLocal, nil
	default:
		return "", fmt.Errorf("unknown mint policy %q (expected adopt or local)", s)
	}
}

// Options configures a Correlator. Zero values fall back to defaults.
type Options struct {
	// Email identifies the user. Default: "anonymous"
	Email string

	// ChatID identifies the conversation. Default: "unknown"
	ChatID string

	// Mint is the session identifier policy. Default: MintAdopt
	Mint Mint

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Clock returns the current time (tests).
	Clock func() time.Time

	// NewID generates session identifiers under MintLocal.
	// Default: uuid.NewString
	NewID func() string
}

// OptionsFromConfig maps the correlator configuration section onto Options.
func OptionsFromConfig(cfg config.CorrelatorConfig) (Options, error) {
	mint, err := ParseMint(cfg.Mint)
	if err != nil {
		return Options{}, err
	}
	return Options{Mint: mint}, nil
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Email) == "" {
		o.Email = trace.AnonymousEmail
	}
	if strings.TrimSpace(o.ChatID) == "" {
		o.ChatID = trace.UnknownChatID
	}
	if o.Mint == "" {
		o.Mint = MintAdopt
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/secrets"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/trace"
)

// Defaults applied by New.
const (
	DefaultTimeout = 10 * time.Second
	DefaultBurst   = 50
)

// Journal receives one entry per delivery attempt. *journal.Recorder
// satisfies it.
type Journal interface {
	Record(entry *journal.Entry)
}

// Options configures a Client. Every field is optional.
type Options struct {
	// Route is the collector's trace route appended to base URLs.
	// Default: "/api/external/trace"
	Route string

	// Timeout bounds each POST to the collector.
	// Default: 10s
	Timeout time.Duration

	// RateLimit is the maximum deliveries per second (0 = unlimited).
	// Deliveries over the limit fail immediately.
	RateLimit float64

	// Burst is the limiter's bucket size.
	// Default: 50
	Burst int

	// Source tags events built by SendUserMessage/SendAssistantResponse.
	// Default: "next-chats-share"
	Source string

	// UserAgent is sent with every request.
	UserAgent string

	// KeySource supplies the API key at send time. When set it takes
	// precedence over the key passed to Configure.
	KeySource secrets.KeySource

	// HTTPTransport replaces the pooled transport (tests).
	HTTPTransport http.RoundTripper

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Journal Journal
}

// OptionsFromConfig maps the collector configuration section onto Options.
func OptionsFromConfig(cfg config.CollectorConfig, source string) Options {
	return Options{
		Route:     cfg.Route,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Source:    source,
	}
}

// Client delivers trace events to the external collector.
//
// A Client is safe for concurrent use. It never retries and never returns a
// Go error from Send; every outcome is a trace.Result.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger

	mu         sync.RWMutex
	configured bool
	endpoint   string
	apiKey     string
	configArgs [2]string

	healthMu sync.RWMutex
	health   Health
}

// New creates an unconfigured client. Until Configure is called every Send
// fails fast with a ConfigurationError.
func New(opts Options) *Client {
	if opts.Route == "" {
		opts.Route = DefaultRoute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}
	if opts.Source == "" {
		opts.Source = trace.DefaultSource
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tracebridge"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "transport")

	roundTripper := opts.HTTPTransport
	if roundTripper == nil {
		// Pooled transport only; the client itself never retries.
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 0
		retryClient.Logger = nil
		roundTripper = retryClient.HTTPClient.Transport
	}

	httpClient := resty.New().
		SetTransport(roundTripper).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{logger}).
		SetHeader("User-Agent", opts.UserAgent)

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
		logger:  logger,
		health:  Health{Healthy: true},
	}
}

// Configure sets the collector base URL and API key. The trace route is
// appended unless the URL already ends with it. Calling Configure again with
// the same arguments is a no-op; different arguments replace the previous
// configuration.
//
// An empty endpoint is accepted: later sends fail fast with a
// ConfigurationError. An unparsable endpoint returns a ConfigurationError
// and keeps the previous configuration.
func (c *Client) Configure(endpointURL, apiKey string) error {
	return c.configure(endpointURL, apiKey, false)
}

// ConfigureTraceURL is Configure for an explicit full trace URL, which is
// used verbatim.
func (c *Client) ConfigureTraceURL(traceURL, apiKey string) error {
	return c.configure(traceURL, apiKey, true)
}

func (c *Client) configure(rawURL, apiKey string, verbatim bool) error {
	args := [2]string{rawURL, apiKey}
	if verbatim {
		args[0] = "verbatim:" + rawURL
	}

	c.mu.RLock()
	same := c.configured && c.configArgs == args
	c.mu.RUnlock()
	if same {
		return nil
	}

	var endpoint string
	var err error
	if verbatim {
		endpoint, err = validateTraceURL(rawURL)
	} else {
		endpoint, err = ResolveEndpoint(rawURL, c.opts.Route)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.configured = true
	c.configArgs = args
	c.endpoint = endpoint
	c.apiKey = apiKey
	c.mu.Unlock()

	if endpoint == "" {
		c.logger.Warn("no trace collector endpoint configured, trace events will not be delivered")
	} else {
		c.logger.Info("trace collector configured",
			"endpoint", endpoint,
			"api_key_set", apiKey != "" || c.opts.KeySource != nil,
		)
	}

	return nil
}

// Endpoint returns the resolved trace URL ("" when unconfigured).
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Source returns the source tag used by the event builders.
func (c *Client) Source() string {
	return c.opts.Source
}

func (c *Client) snapshot() (endpoint, apiKey string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint, c.apiKey
}

// resolveKey returns the key from the KeySource when one is set, else the
// configured key.
func (c *Client) resolveKey(ctx context.Context, configured string) (string, error) {
	if c.opts.KeySource == nil {
		return configured, nil
	}
	return c.opts.KeySource.APIKey(ctx)
}

// restyLogger routes resty's internal messages to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error("http client error", "detail", fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn("http client warning", "detail", fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug("http client debug", "detail", fmt.Sprintf(format, v...))
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/correlator"
	"mercator-hq/tracebridge/pkg/telemetry/health"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/telemetry/tracing"
)

// Options carries the relay's collaborators. Registry is required.
type Options struct {
	Registry *correlator.Registry
	Checker  *health.Checker
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	// MetricsPath mounts the Prometheus handler ("" = not mounted).
	MetricsPath string

	// ProbesPerSecond limits /health and /ready (0 = unlimited).
	ProbesPerSecond int

	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP/WebSocket relay the hosting chat UI notifies of user
// messages, completed assistant turns and conversation resets.
type Server struct {
	config   *config.RelayConfig
	opts     Options
	logger   *slog.Logger
	registry *correlator.Registry

	httpServer *http.Server
	listener   net.Listener
	streams    *streamHub

	// pending tracks asynchronous trace calls so shutdown can wait for them.
	pending sync.WaitGroup

	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a relay server.
func NewServer(cfg *config.RelayConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Checker == nil {
		opts.Checker = health.New(0)
	}

	maxStreams := cfg.MaxStreams
	if maxStreams <= 0 {
		maxStreams = config.DefaultMaxStreams
	}

	return &Server{
		config:       cfg,
		opts:         opts,
		logger:       opts.Logger.With("component", "relay"),
		registry:     opts.Registry,
		streams:      newStreamHub(maxStreams),
		shutdownChan: make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, a termination signal arrives or Stop is called. It then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.markStopped()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown stops accepting requests, closes open streams and waits for
// in-flight and asynchronous traces, bounded by the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		s.streams.closeAll()

		if err := s.waitPending(shutdownCtx); err != nil {
			s.logger.Warn("asynchronous traces still running at shutdown", "error", err)
			if shutdownErr == nil {
				shutdownErr = err
			}
		}

		s.markStopped()
		s.logger.Info("relay server stopped")
	})

	return shutdownErr
}

func (s *Server) waitPending(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for asynchronous traces: %w", ctx.Err())
	}
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address once Start has begun listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the relay's routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Probes and metrics stay open; the chat routes require a token when
	// any are configured.
	auth := TokenAuthMiddleware(s.config.AuthTokens, s.logger)
	mux.Handle("POST /v1/chats/{chatID}/messages", auth(http.HandlerFunc(s.handleUserMessage)))
	mux.Handle("POST /v1/chats/{chatID}/responses", auth(http.HandlerFunc(s.handleAssistantResponse)))
	mux.Handle("GET /v1/chats/{chatID}/session", auth(http.HandlerFunc(s.handleGetSession)))
	mux.Handle("DELETE /v1/chats/{chatID}/session", auth(http.HandlerFunc(s.handleResetSession)))
	mux.Handle("GET /v1/stream", auth(http.HandlerFunc(s.handleStream)))

	health.Register(mux, s.opts.Checker, s.opts.ProbesPerSecond, s.opts.Version, s.opts.Commit, s.opts.BuildTime)
	if s.opts.MetricsPath != "" && s.opts.Metrics != nil {
		mux.Handle("GET "+s.opts.MetricsPath, s.opts.Metrics.Handler())
	}

	handler := recordPattern(mux)

	handler = BodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = CORSMiddleware(s.corsConfig())(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = LoggingMiddleware(s.logger, s.opts.Metrics)(handler)

	// Recovery is outermost.
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

func (s *Server) corsConfig() *CORSConfig {
	cfg := DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = s.config.AllowedOrigins
	}
	return cfg
}

// goAsync runs fn detached from the request, tracked for shutdown.
func (s *Server) goAsync(ctx context.Context, fn func(ctx context.Context)) {
	s.pending.Add(1)
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.pending.Done()
		start := time.Now()
		fn(ctx)
		s.logger.DebugContext(ctx, "asynchronous trace finished", "duration_ms", time.Since(start).Milliseconds())
	}()
}

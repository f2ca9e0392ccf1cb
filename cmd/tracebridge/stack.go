package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/correlator"
	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/journal/storage"
	"mercator-hq/tracebridge/pkg/secrets"
	"mercator-hq/tracebridge/pkg/telemetry/logging"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
	"mercator-hq/tracebridge/pkg/telemetry/tracing"
	"mercator-hq/tracebridge/pkg/transport"
)

// stack holds the components shared by run and send.
type stack struct {
	cfg      *config.Config
	log      *logging.Logger
	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	keys     secrets.KeySource
	store    journal.Storage
	recorder *journal.Recorder
	client   *transport.Client
	registry *correlator.Registry

	closers []func() error
}

// buildStack wires telemetry, the key source, the journal, the transport
// and the correlator registry from cfg. Logs are written to logOut.
func buildStack(cfg *config.Config, logOut io.Writer) (_ *stack, err error) {
	s := &stack{cfg: cfg}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.log, err = logging.New(logging.FromConfig(cfg.Telemetry.Logging, logOut))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	s.logger = s.log.Slog()
	s.closers = append(s.closers, s.log.Shutdown)

	s.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	s.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	tracer := s.tracer
	s.closers = append(s.closers, func() error { return tracer.Shutdown(context.Background()) })

	if cfg.Collector.APIKeyFile != "" {
		fileSource, err := secrets.NewFileSource(cfg.Collector.APIKeyFile, cfg.Collector.WatchKeyFile, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load collector API key: %w", err)
		}
		s.keys = fileSource
		s.closers = append(s.closers, fileSource.Close)
	} else {
		s.keys = secrets.StaticSource(cfg.Collector.APIKey)
	}

	if cfg.Journal.Enabled {
		s.store, err = storage.Open(cfg.Journal, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.closers = append(s.closers, s.store.Close)

		recorderConfig := journal.DefaultRecorderConfig()
		recorderConfig.RecordMessages = cfg.Journal.RecordMessages
		s.recorder = journal.NewRecorder(s.store, recorderConfig, s.metrics, s.logger)
		s.closers = append(s.closers, s.recorder.Close)
	}

	opts := transport.OptionsFromConfig(cfg.Collector, cfg.Correlator.Source)
	opts.UserAgent = "tracebridge/" + Version
	opts.KeySource = s.keys
	opts.Logger = s.logger
	opts.Metrics = s.metrics
	opts.Tracer = s.tracer
	if s.recorder != nil {
		opts.Journal = s.recorder
	}
	s.client = transport.New(opts)

	if cfg.Collector.TraceURL != "" {
		err = s.client.ConfigureTraceURL(cfg.Collector.TraceURL, cfg.Collector.APIKey)
	} else {
		err = s.client.Configure(cfg.Collector.BaseURL, cfg.Collector.APIKey)
	}
	if err != nil {
		return nil, err
	}
	if s.client.Endpoint() == "" {
		s.logger.Warn("no collector endpoint configured, trace events will not be delivered")
	}

	correlatorOpts, err := correlator.OptionsFromConfig(cfg.Correlator)
	if err != nil {
		return nil, err
	}
	correlatorOpts.Logger = s.logger
	correlatorOpts.Metrics = s.metrics
	correlatorOpts.Tracer = s.tracer
	s.registry = correlator.NewRegistry(s.client, correlatorOpts)

	return s, nil
}

// Close releases components in reverse construction order. The recorder is
// closed before its storage so queued entries are flushed.
func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

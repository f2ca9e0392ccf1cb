package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tracebridge/pkg/cli"
	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/journal/retention"
	"mercator-hq/tracebridge/pkg/relay"
	"mercator-hq/tracebridge/pkg/telemetry/health"
)

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 2 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trace relay",
	Long: `Start the relay server with the specified configuration.

The relay accepts user messages, assistant responses and session resets from
the chat UI over HTTP or a WebSocket stream and forwards them to the trace
collector, correlating every conversation under one session id.

Examples:
  # Start with default config
  tracebridge run

  # Start with custom config
  tracebridge run --config /etc/tracebridge/config.yaml

  # Override listen address
  tracebridge run --listen 0.0.0.0:8090

  # Validate config without starting the relay
  tracebridge run --dry-run`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the relay")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Relay.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	fmt.Fprintf(out, "Tracebridge v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)

	s, err := buildStack(cfg, os.Stdout)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer s.Close()
	s.log.SetDefault()

	if endpoint := s.client.Endpoint(); endpoint != "" {
		fmt.Fprintf(out, "✓ Collector endpoint: %s\n", endpoint)
	}
	if s.store != nil {
		fmt.Fprintf(out, "✓ Journal initialized (%s)\n", cfg.Journal.Driver)
	}

	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("endpoint", true, s.client.CheckConfigured)
	checker.RegisterCheck("collector", false, s.client.CheckHealthy)
	if s.store != nil {
		checker.RegisterCheck("journal", false, s.store.Ping)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	scheduler := retention.NewScheduler(s.logger)
	if s.store != nil {
		pruner := retention.NewPruner(s.store, retention.PrunerConfig{
			RetentionDays: cfg.Journal.Retention.Days,
			MaxEntries:    cfg.Journal.Retention.MaxEntries,
		}, s.metrics, s.logger)
		if err := scheduler.Add(ctx, cfg.Journal.Retention.Schedule, pruner); err != nil {
			return cli.NewCommandError("run", err)
		}
	}
	if cfg.Correlator.IdleTimeout > 0 {
		evictor := retention.NewEvictor(s.registry, cfg.Correlator.IdleTimeout, s.metrics, s.logger)
		if err := scheduler.Add(ctx, cfg.Correlator.EvictSchedule, evictor); err != nil {
			return cli.NewCommandError("run", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	metricsPath := ""
	if cfg.Telemetry.Metrics.Enabled {
		metricsPath = cfg.Telemetry.Metrics.Path
	}

	srv := relay.NewServer(&cfg.Relay, relay.Options{
		Registry:    s.registry,
		Checker:     checker,
		Metrics:     s.metrics,
		Logger:      s.logger,
		MetricsPath: metricsPath,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	})

	fmt.Fprintf(out, "✓ Relay listening on %s\n", cfg.Relay.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Relay.ListenAddress)
	if metricsPath != "" {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Relay.ListenAddress, metricsPath)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("relay stopped with error", "error", err)
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Relay stopped")
	return nil
}

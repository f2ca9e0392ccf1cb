package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/tracebridge/pkg/cli"
	"mercator-hq/tracebridge/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tracebridge",
	Short: "Tracebridge - chat trace correlation relay",
	Long: `Tracebridge forwards chat conversation events to an external trace
collector and keeps every event of a conversation under one session id.

Configuration is read from a YAML file and the environment. The collector
endpoint can be supplied with EXTERNAL_TRACE_API_URL, EXTERNAL_TRACE_URL or
EXTERNAL_TRACE_ROUTE_URL, and the key with EXTERNAL_TRACE_API_KEY.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration file named by --config and applies
// environment overrides. A missing file falls back to defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

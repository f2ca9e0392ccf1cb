package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/tracebridge/pkg/cli"
	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/telemetry/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Validate and display the effective configuration.

The effective configuration is the file named by --config with defaults
filled in and environment overrides applied.

Examples:
  # Check a file before deploying it
  tracebridge config validate --config /etc/tracebridge/config.yaml

  # Show what the relay would run with
  tracebridge config show`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  validateConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  showConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := config.LoadConfigWithEnvOverrides(cfgFile); err != nil {
		errs := cli.ConfigErrors(err)
		fmt.Fprintf(out, "✗ Configuration invalid (%d errors)\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(out, "  - %s\n", e.Error())
		}
		return cli.NewCommandError("config validate", fmt.Errorf("%d configuration errors", len(errs)))
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.Collector.APIKey = logging.RedactAPIKey(cfg.Collector.APIKey)
	for i, token := range cfg.Relay.AuthTokens {
		cfg.Relay.AuthTokens[i] = logging.RedactAPIKey(token)
	}

	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return cli.NewCommandError("config show", err)
	}
	return encoder.Close()
}

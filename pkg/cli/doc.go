/*
Package cli provides command-line helpers shared by the tracebridge commands.

Output Formatting:

Commands print results as text, JSON or CSV. Values that implement Table are
rendered as aligned columns in text mode and as rows in CSV mode:

	formatter, err := cli.NewFormatter(cli.FormatCSV)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, entries)

Errors:

ConfigErrors flattens a configuration validation failure into one
ConfigError per field so commands can report every problem at once.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli

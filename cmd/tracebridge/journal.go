package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tracebridge/pkg/cli"
	"mercator-hq/tracebridge/pkg/config"
	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/journal/retention"
	"mercator-hq/tracebridge/pkg/journal/storage"
)

var journalFlags struct {
	since     string
	until     string
	chatID    string
	email     string
	role      string
	sessionID string
	status    string
	limit     int
	offset    int
	ascending bool
	format    string
	output    string

	olderThan  time.Duration
	maxEntries int64
	dryRun     bool
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the delivery journal",
	Long: `Query and prune the local journal of delivery attempts.

Every event the relay sends to the collector is recorded with its outcome,
status code, returned trace id and latency.

Subcommands:
  query   - List journal entries with filters
  prune   - Remove old entries now

Examples:
  # Failed deliveries in the last day
  tracebridge journal query --since 24h --status failure

  # Everything sent for one conversation, oldest first
  tracebridge journal query --chat chat-1 --ascending

  # Export to CSV
  tracebridge journal query --format csv --output journal.csv`,
}

var journalQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query journal entries",
	Long: `Query journal entries with filters.

Time Format:
  --since and --until accept an RFC3339 timestamp or a duration relative to
  now, e.g. "2026-10-16T00:00:00Z" or "24h".`,
	RunE: queryJournal,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old journal entries",
	Long: `Apply retention to the journal immediately.

Without flags the configured retention (journal.retention.days and
journal.retention.max_entries) is applied.

Examples:
  # Apply configured retention
  tracebridge journal prune

  # Drop everything older than a week
  tracebridge journal prune --older-than 168h

  # Show what would be removed
  tracebridge journal prune --older-than 168h --dry-run`,
	RunE: pruneJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalQueryCmd, journalPruneCmd)

	journalQueryCmd.Flags().StringVar(&journalFlags.since, "since", "", "entries recorded at or after (RFC3339 or duration)")
	journalQueryCmd.Flags().StringVar(&journalFlags.until, "until", "", "entries recorded at or before (RFC3339 or duration)")
	journalQueryCmd.Flags().StringVar(&journalFlags.chatID, "chat", "", "filter by chat id")
	journalQueryCmd.Flags().StringVar(&journalFlags.email, "email", "", "filter by user email")
	journalQueryCmd.Flags().StringVar(&journalFlags.role, "role", "", "filter by role (user, assistant)")
	journalQueryCmd.Flags().StringVar(&journalFlags.sessionID, "session", "", "filter by session id")
	journalQueryCmd.Flags().StringVar(&journalFlags.status, "status", "", "filter by outcome (success, failure)")
	journalQueryCmd.Flags().IntVar(&journalFlags.limit, "limit", journal.DefaultQueryLimit, "max results")
	journalQueryCmd.Flags().IntVar(&journalFlags.offset, "offset", 0, "pagination offset")
	journalQueryCmd.Flags().BoolVar(&journalFlags.ascending, "ascending", false, "oldest entries first")
	journalQueryCmd.Flags().StringVar(&journalFlags.format, "format", "text", "output format: text, json, csv")
	journalQueryCmd.Flags().StringVarP(&journalFlags.output, "output", "o", "", "output file (default: stdout)")

	journalPruneCmd.Flags().DurationVar(&journalFlags.olderThan, "older-than", 0, "remove entries older than this (overrides retention days)")
	journalPruneCmd.Flags().Int64Var(&journalFlags.maxEntries, "max-entries", 0, "keep at most this many entries (overrides retention)")
	journalPruneCmd.Flags().BoolVar(&journalFlags.dryRun, "dry-run", false, "count entries that would be removed")
}

// entryTable renders journal entries as rows.
type entryTable []*journal.Entry

func (t entryTable) Header() []string {
	return []string{"recorded_at", "chat_id", "role", "session_id", "status", "code", "trace_id", "latency", "error"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		status := journal.StatusSuccess
		if !e.Success {
			status = journal.StatusFailure
		}
		rows = append(rows, []string{
			e.RecordedAt.UTC().Format(time.RFC3339),
			e.ChatID,
			e.Role,
			e.SessionID,
			status,
			strconv.Itoa(e.StatusCode),
			e.TraceID,
			e.Latency.Round(time.Millisecond).String(),
			e.Error,
		})
	}
	return rows
}

type queryOutput struct {
	Total   int              `json:"total"`
	Entries []*journal.Entry `json:"entries"`
}

// openJournal opens the configured journal backend for a one-off command.
func openJournal(cfg *config.Config) (journal.Storage, error) {
	if cfg.Journal.Driver == storage.DriverMemory {
		return nil, cli.NewConfigError("journal.driver", "the memory journal only exists inside a running relay")
	}
	return storage.Open(cfg.Journal, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func queryJournal(cmd *cobra.Command, args []string) error {
	format := cli.OutputFormat(strings.ToLower(journalFlags.format))
	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}

	query, err := buildJournalQuery(time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openJournal(cfg)
	if err != nil {
		return cli.NewCommandError("journal", err)
	}
	defer store.Close()

	entries, err := store.Query(cmd.Context(), query)
	if err != nil {
		return cli.NewCommandError("journal", fmt.Errorf("query failed: %w", err))
	}

	out := cmd.OutOrStdout()
	if journalFlags.output != "" {
		file, err := os.Create(journalFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	var data any = entryTable(entries)
	switch {
	case format == cli.FormatJSON:
		data = queryOutput{Total: len(entries), Entries: entries}
	case format != cli.FormatCSV && len(entries) == 0:
		_, err := fmt.Fprintln(out, "No entries found.")
		return err
	}

	return formatter.FormatTo(out, data)
}

// buildJournalQuery maps the query flags onto a journal.Query.
func buildJournalQuery(now time.Time) (*journal.Query, error) {
	query := &journal.Query{
		ChatID:    journalFlags.chatID,
		Email:     journalFlags.email,
		Role:      journalFlags.role,
		SessionID: journalFlags.sessionID,
		Status:    journalFlags.status,
		Limit:     journalFlags.limit,
		Offset:    journalFlags.offset,
		Ascending: journalFlags.ascending,
	}

	var err error
	if query.Since, err = parseTimeFlag("since", journalFlags.since, now); err != nil {
		return nil, err
	}
	if query.Until, err = parseTimeFlag("until", journalFlags.until, now); err != nil {
		return nil, err
	}

	if err := query.Validate(); err != nil {
		return nil, err
	}
	return query, nil
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration before now.
func parseTimeFlag(name, value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return &ts, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return nil, fmt.Errorf("invalid --%s %q (expected RFC3339 timestamp or positive duration)", name, value)
	}
	ts := now.Add(-d)
	return &ts, nil
}

func pruneJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openJournal(cfg)
	if err != nil {
		return cli.NewCommandError("journal", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	olderThan := journalFlags.olderThan
	if olderThan <= 0 && cfg.Journal.Retention.Days > 0 {
		olderThan = time.Duration(cfg.Journal.Retention.Days) * 24 * time.Hour
	}
	maxEntries := journalFlags.maxEntries
	if maxEntries <= 0 {
		maxEntries = cfg.Journal.Retention.MaxEntries
	}

	if journalFlags.dryRun {
		var byAge int64
		if olderThan > 0 {
			until := time.Now().Add(-olderThan).Add(-time.Nanosecond)
			if byAge, err = store.Count(ctx, &journal.Query{Until: &until}); err != nil {
				return cli.NewCommandError("journal", err)
			}
		}
		total, err := store.Count(ctx, &journal.Query{})
		if err != nil {
			return cli.NewCommandError("journal", err)
		}
		var byCount int64
		if remaining := total - byAge; maxEntries > 0 && remaining > maxEntries {
			byCount = remaining - maxEntries
		}
		fmt.Fprintf(out, "Would remove %d of %d entries (%d by age, %d by count)\n", byAge+byCount, total, byAge, byCount)
		return nil
	}

	pruner := retention.NewPruner(store, retention.PrunerConfig{MaxEntries: maxEntries}, nil, nil)

	var removed int64
	if olderThan > 0 {
		if removed, err = pruner.PruneOlderThan(ctx, time.Now().Add(-olderThan)); err != nil {
			return cli.NewCommandError("journal", err)
		}
	}
	trimmed, err := pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("journal", err)
	}

	fmt.Fprintf(out, "✓ Removed %d entries\n", removed+trimmed)
	return nil
}

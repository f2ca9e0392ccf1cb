package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/tracebridge/pkg/journal"
	"mercator-hq/tracebridge/pkg/telemetry/metrics"
)

// PrunerConfig contains configuration for the journal pruner.
type PrunerConfig struct {
	// RetentionDays is the number of days entries are kept.
	// 0 or negative keeps entries forever.
	RetentionDays int

	// MaxEntries is the maximum number of entries to keep.
	// 0 means unlimited.
	MaxEntries int64
}

// Pruner enforces retention on the delivery journal.
type Pruner struct {
	storage journal.Storage
	config  PrunerConfig
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner. collector may be nil.
func NewPruner(storage journal.Storage, config PrunerConfig, collector *metrics.Collector, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		metrics: collector,
		logger:  logger.With("component", "journal.retention"),
		now:     time.Now,
	}
}

// Name implements Task.
func (p *Pruner) Name() string {
	return "journal-prune"
}

// Run implements Task.
func (p *Pruner) Run(ctx context.Context) error {
	_, err := p.Prune(ctx)
	return err
}

// Prune deletes entries older than the retention period, then trims the
// journal to MaxEntries. Returns the total number of entries removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.PruneOlderThan(ctx, p.now().AddDate(0, 0, -p.config.RetentionDays))
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxEntries > 0 {
		deleted, err := p.storage.Trim(ctx, p.config.MaxEntries)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		p.metrics.RecordPruned(deleted)
		total += deleted
	}

	if total > 0 {
		p.logger.Info("journal pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_entries", p.config.MaxEntries,
		)
	} else {
		p.logger.Debug("no journal entries pruned")
	}

	return total, nil
}

// PruneOlderThan deletes entries recorded strictly before cutoff.
func (p *Pruner) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	until := cutoff.Add(-time.Nanosecond)

	deleted, err := p.storage.Delete(ctx, &journal.Query{Until: &until})
	if err != nil {
		return 0, err
	}
	p.metrics.RecordPruned(deleted)

	p.logger.Debug("pruned journal by age",
		"cutoff_time", cutoff,
		"deleted_count", deleted,
	)
	return deleted, nil
}

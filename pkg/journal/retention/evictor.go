package retention

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/tracebridge/pkg/telemetry/metrics"
)

// IdleEvicter drops conversations without activity for maxIdle and returns
// how many were removed.
type IdleEvicter interface {
	EvictIdle(maxIdle time.Duration) int
}

// Evictor is the task that forgets idle conversations so their session ids
// do not live forever in a long-running relay.
type Evictor struct {
	target  IdleEvicter
	maxIdle time.Duration
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewEvictor creates the eviction task. collector may be nil.
func NewEvictor(target IdleEvicter, maxIdle time.Duration, collector *metrics.Collector, logger *slog.Logger) *Evictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evictor{
		target:  target,
		maxIdle: maxIdle,
		metrics: collector,
		logger:  logger.With("component", "correlator.evictor"),
	}
}

// Name implements Task.
func (e *Evictor) Name() string {
	return "conversation-evict"
}

// Run implements Task.
func (e *Evictor) Run(ctx context.Context) error {
	if e.maxIdle <= 0 {
		return nil
	}

	n := e.target.EvictIdle(e.maxIdle)
	e.metrics.RecordEvicted(n)

	if n > 0 {
		e.logger.Info("evicted idle conversations",
			"count", n,
			"max_idle", e.maxIdle,
		)
	}
	return nil
}

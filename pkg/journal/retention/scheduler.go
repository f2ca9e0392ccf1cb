package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a maintenance job run on a cron schedule.
type Task interface {
	// Name identifies the task in logs and NextRun lookups.
	Name() string

	// Run performs one cycle.
	Run(ctx context.Context) error
}

// Scheduler runs maintenance tasks at scheduled intervals using standard
// five-field cron expressions. A cycle that is still running when its next
// tick arrives is skipped.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	entries map[string]cron.EntryID
	running bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.With("component", "journal.scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers task under schedule. An empty schedule leaves the task
// unscheduled without error.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 0 * * 0"    - Weekly on Sunday at midnight
func (s *Scheduler) Add(ctx context.Context, schedule string, task Task) error {
	if schedule == "" {
		s.logger.Info("schedule not configured, task skipped", "task", task.Name())
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", schedule, task.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[task.Name()]; exists {
		return fmt.Errorf("task %s already scheduled", task.Name())
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.run(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", task.Name(), err)
	}
	s.entries[task.Name()] = id

	s.logger.Info("task scheduled",
		"task", task.Name(),
		"schedule", schedule,
	)

	return nil
}

// Start begins running scheduled tasks and stops them when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || len(s.entries) == 0 {
		return
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("maintenance scheduler started", "tasks", len(s.entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

func (s *Scheduler) run(ctx context.Context, task Task) {
	start := time.Now()
	s.logger.Debug("starting scheduled task", "task", task.Name())

	if err := task.Run(ctx); err != nil {
		s.logger.Error("scheduled task failed",
			"task", task.Name(),
			"error", err,
		)
		return
	}

	s.logger.Debug("scheduled task completed",
		"task", task.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and waits for any running tasks to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled time for the named task, or nil when
// the task is unknown or the scheduler is not running.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok || !s.running {
		return nil
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}

// Package retention runs periodic maintenance for the relay.
//
// Two tasks exist:
//
//   - Pruner removes journal entries older than the retention period and
//     trims the journal to a maximum size, oldest first.
//   - Evictor drops conversations that have been idle longer than the
//     configured timeout, which also forgets their session ids.
//
// Both run on a Scheduler driven by github.com/robfig/cron/v3:
//
//	sched := retention.NewScheduler(logger)
//	sched.Add(ctx, "0 3 * * *", retention.NewPruner(store, retention.PrunerConfig{
//		RetentionDays: 30,
//	}, collector, logger))
//	sched.Add(ctx, "*/15 * * * *", retention.NewEvictor(registry, 24*time.Hour, collector, logger))
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Pruner.Prune can also be called directly, as the journal prune command does.
package retention

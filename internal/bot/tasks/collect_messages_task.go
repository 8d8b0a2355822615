package tasks

import (
	"context"
	"fmt"
	"time"
)

// newCollectMessagesTask runs an incremental collection over every active
// association. Individual run failures are part of the report, not task errors.
func newCollectMessagesTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "collect_messages")

	return func(ctx context.Context) error {
		startTime := time.Now()
		report, err := deps.Runner.CollectAll(ctx)
		if err != nil {
			return fmt.Errorf("collection pass interrupted: %w", err)
		}
		log.InfoContext(ctx, "Collection pass completed",
			"new_messages", report.NewMessages,
			"failed", report.Failed,
			"duration", time.Since(startTime),
		)
		return nil
	}
}

// newStaleSweepTask deactivates associations not collected within collector.stale_after.
func newStaleSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stale_sweep")

	return func(ctx context.Context) error {
		n, err := deps.Runner.SweepStale(ctx)
		if err != nil {
			return fmt.Errorf("stale sweep failed: %w", err)
		}
		log.InfoContext(ctx, "Stale sweep completed", "deactivated", n)
		return nil
	}
}

package tasks

import (
	"context"
	"fmt"
	"time"
)

// newWeeklySummariesTask summarizes every tracked group over summaries.window.
func newWeeklySummariesTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "weekly_summaries")

	return func(ctx context.Context) error {
		startTime := time.Now()
		written, err := deps.Summarizer.SummarizeAll(ctx)
		if err != nil {
			return fmt.Errorf("summary pass failed: %w", err)
		}
		log.InfoContext(ctx, "Summary pass completed", "written", written, "duration", time.Since(startTime))
		return nil
	}
}

// newSummaryCleanupTask deletes summaries past summaries.retention.
func newSummaryCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "summary_cleanup")

	return func(ctx context.Context) error {
		n, err := deps.Summarizer.CleanupOldSummaries(ctx)
		if err != nil {
			return fmt.Errorf("summary cleanup failed: %w", err)
		}
		log.DebugContext(ctx, "Summary cleanup completed", "deleted", n)
		return nil
	}
}

package tasks

import (
	"context"

	"github.com/edgard/tgcollector/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. Tasks must
// respect ctx cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the task functions keyed by the names used under
// scheduler.tasks in config.yaml.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskCollectMessages: newCollectMessagesTask(deps),
		config.TaskStaleSweep:      newStaleSweepTask(deps),
		config.TaskSQLMaintenance:  newSQLMaintenanceTask(deps),
	}
	if deps.Summarizer != nil {
		tasks[config.TaskWeeklySummaries] = newWeeklySummariesTask(deps)
		tasks[config.TaskSummaryCleanup] = newSummaryCleanupTask(deps)
	} else {
		deps.Logger.Info("Summarizer not configured, summary tasks unavailable")
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

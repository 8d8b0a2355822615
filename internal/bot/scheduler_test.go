package bot

import (
	"context"
	"slices"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tgcollector/internal/bot/tasks"
	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/logger"
)

func noopTask(context.Context) error { return nil }

func TestSchedulerStart(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":      {Enabled: true, Schedule: "0 */15 * * * *"},
		"disabled":     {Enabled: false, Schedule: "0 0 * * * *"},
		"unregistered": {Enabled: true, Schedule: "0 0 * * * *"},
		"bad_schedule": {Enabled: true, Schedule: "not a cron"},
		"also_enabled": {Enabled: true, Schedule: "0 0 3 * * 0"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled":      noopTask,
		"disabled":     noopTask,
		"bad_schedule": noopTask,
		"also_enabled": noopTask,
	}

	s, err := NewScheduler(logger.Discard(), cfg, taskMap, WithSchedulerClock(clockwork.NewFakeClock()))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	names := s.JobNames()
	slices.Sort(names)
	if want := []string{"also_enabled", "enabled"}; !slices.Equal(names, want) {
		t.Errorf("JobNames() = %v, want %v", names, want)
	}

	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start succeeded, want error")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(logger.Discard(), &config.SchedulerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
}

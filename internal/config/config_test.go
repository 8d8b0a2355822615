package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/tgcollector/internal/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != DefaultLogLevel {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, DefaultLogLevel)
	}
	if cfg.Collector.Limit != DefaultCollectorLimit {
		t.Errorf("Collector.Limit = %d, want %d", cfg.Collector.Limit, DefaultCollectorLimit)
	}
	if cfg.Collector.StaleAfter != DefaultStaleAfter {
		t.Errorf("Collector.StaleAfter = %v, want %v", cfg.Collector.StaleAfter, DefaultStaleAfter)
	}
	task, ok := cfg.Scheduler.Tasks[TaskCollectMessages]
	if !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("collect_messages task = %+v (present %v), want enabled with a schedule", task, ok)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logger:
  level: debug
  json: true
database:
  path: /tmp/custom.db
collector:
  limit: 50
  timeout: 45s
telegram:
  bot_token: "123:abc"
  admin_user_id: 42
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("Logger = %+v, want debug/json", cfg.Logger)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Collector.Limit != 50 || cfg.Collector.Timeout != 45*time.Second {
		t.Errorf("Collector = %+v", cfg.Collector)
	}
	if err := cfg.RequireOperatorBot(); err != nil {
		t.Errorf("RequireOperatorBot() error = %v", err)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "logger:\n  level: verbose\n"},
		{"zero limit", "collector:\n  limit: 0\n"},
		{"timeout too short", "collector:\n  timeout: 10ms\n"},
		{"token without admin", "telegram:\n  bot_token: \"123:abc\"\n"},
		{"enabled task without schedule", "scheduler:\n  tasks:\n    collect_messages:\n      enabled: true\n      schedule: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want validation error")
			}
			if code := errs.Code(err); code != errs.CodeConfig {
				t.Errorf("errs.Code() = %q, want %q", code, errs.CodeConfig)
			}
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TGC_DATABASE_PATH", "/var/lib/tgc.db")
	t.Setenv("TGC_COLLECTOR_LIMIT", "25")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Database.Path != "/var/lib/tgc.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Collector.Limit != 25 {
		t.Errorf("Collector.Limit = %d, want 25", cfg.Collector.Limit)
	}
}

func TestRequireOperatorBot(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.RequireOperatorBot(); err == nil {
		t.Error("RequireOperatorBot() error = nil for empty config")
	}
}

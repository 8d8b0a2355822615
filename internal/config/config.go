// Package config provides configuration loading, validation, and management
// for tgcollector. Values come from built-in defaults, an optional YAML file
// and TGC_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"

	"github.com/edgard/tgcollector/internal/errs"
)

// EnvPrefix is the prefix for environment overrides, e.g. TGC_DATABASE_PATH.
const EnvPrefix = "TGC"

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Collector CollectorConfig `mapstructure:"collector"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Summaries SummariesConfig `mapstructure:"summaries"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds the operator bot settings and the default platform
// app credentials used when registering accounts without their own.
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required_with=BotToken"`
	AppID       int    `mapstructure:"app_id"        validate:"gte=0"`
	AppHash     string `mapstructure:"app_hash"      validate:"required_with=AppID"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// CollectorConfig tunes collection runs.
type CollectorConfig struct {
	Limit                  int           `mapstructure:"limit"                     validate:"min=1,max=10000"`
	HistoryLimit           int           `mapstructure:"history_limit"             validate:"min=1,max=100000"`
	Timeout                time.Duration `mapstructure:"timeout"                   validate:"min=1s,max=30m"`
	MaxParallelAccounts    int           `mapstructure:"max_parallel_accounts"     validate:"min=1,max=64"`
	StaleAfter             time.Duration `mapstructure:"stale_after"               validate:"min=1h"`
	SenderLookupsPerSecond float64       `mapstructure:"sender_lookups_per_second" validate:"gt=0"`
}

// GeminiConfig configures the summarization model.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	ModelName         string        `mapstructure:"model_name"          validate:"required"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
}

// SummariesConfig controls the summary window and retention.
type SummariesConfig struct {
	Window    time.Duration `mapstructure:"window"    validate:"min=1h"`
	Retention time.Duration `mapstructure:"retention" validate:"min=24h"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a registered task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds operator bot replies.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required"`
	Help           string `mapstructure:"help"            validate:"required"`
	NotAuthorized  string `mapstructure:"not_authorized"  validate:"required"`
	GeneralError   string `mapstructure:"general_error"   validate:"required"`
	Timeout        string `mapstructure:"timeout"         validate:"required"`
	CodeSent       string `mapstructure:"code_sent"       validate:"required"`
	LoginSucceeded string `mapstructure:"login_succeeded" validate:"required"`
}

// LoadConfig reads the configuration file at path (if it exists), applies
// defaults and environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
			}
		} else if errors.Is(err, os.ErrNotExist) {
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		} else {
			return nil, errs.NewConfigError(fmt.Sprintf("failed to stat config file %s", path), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.NewConfigError("configuration validation failed", err)
	}
	return nil
}

// RequireOperatorBot reports an error when the operator bot cannot start.
func (c *Config) RequireOperatorBot() error {
	if c.Telegram.BotToken == "" {
		return errs.NewConfigError("telegram.bot_token is required to run the operator bot", nil)
	}
	if c.Telegram.AdminUserID <= 0 {
		return errs.NewConfigError("telegram.admin_user_id is required to run the operator bot", nil)
	}
	return nil
}

package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "tgcollector.db"

	DefaultCollectorLimit         = 200
	DefaultCollectorHistoryLimit  = 1000
	DefaultCollectorTimeout       = 2 * time.Minute
	DefaultMaxParallelAccounts    = 4
	DefaultStaleAfter             = 7 * 24 * time.Hour
	DefaultSenderLookupsPerSecond = 5.0

	DefaultGeminiModel       = "gemini-1.5-flash"
	DefaultGeminiTemperature = 0.4
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2
	DefaultGeminiTimeout     = 2 * time.Minute

	DefaultSummaryWindow    = 7 * 24 * time.Hour
	DefaultSummaryRetention = 180 * 24 * time.Hour
)

// Task names known to the scheduler. They key scheduler.tasks in config.yaml.
const (
	TaskCollectMessages = "collect_messages"
	TaskStaleSweep      = "stale_sweep"
	TaskWeeklySummaries = "weekly_summaries"
	TaskSummaryCleanup  = "summary_cleanup"
	TaskSQLMaintenance  = "sql_maintenance"
)

// DefaultMessages are the operator bot replies.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 tgcollector operator bot. Use /help to list commands.",
	Help: "/accounts - list accounts\n" +
		"/add_account <phone> [app_id app_hash] - register an account\n" +
		"/login <account_id> [sms] [phone] - request a login code\n" +
		"/verify <account_id> <code> - submit the login code\n" +
		"/logout <account_id> - sign out and drop the session\n" +
		"/groups <account_id> - list tracked groups\n" +
		"/sync_groups <account_id> - import joined groups\n" +
		"/join <account_id> <@handle|link> - join a public group\n" +
		"/collect <account_id> <group_id> [limit] - collect recent messages\n" +
		"/backfill <account_id> <group_id> [limit] - collect oldest messages first\n" +
		"/toggle <account_id> <group_id> - toggle an association\n" +
		"/summarize <group_id> [days] - summarize unprocessed messages",
	NotAuthorized:  "🚫 Access denied.",
	GeneralError:   "❌ An error occurred. Please try again later.",
	Timeout:        "⏱️ The operation timed out. It will be retried on the next cycle.",
	CodeSent:       "📨 Login code sent. Reply with /verify %d <code> (separate digits with spaces so Telegram does not invalidate it).",
	LoginSucceeded: "✅ Account %d is now authenticated.",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.app_id", 0)
	v.SetDefault("telegram.app_hash", "")

	v.SetDefault("collector.limit", DefaultCollectorLimit)
	v.SetDefault("collector.history_limit", DefaultCollectorHistoryLimit)
	v.SetDefault("collector.timeout", DefaultCollectorTimeout)
	v.SetDefault("collector.max_parallel_accounts", DefaultMaxParallelAccounts)
	v.SetDefault("collector.stale_after", DefaultStaleAfter)
	v.SetDefault("collector.sender_lookups_per_second", DefaultSenderLookupsPerSecond)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.system_instruction", "")
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelay)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)

	v.SetDefault("summaries.window", DefaultSummaryWindow)
	v.SetDefault("summaries.retention", DefaultSummaryRetention)

	v.SetDefault("scheduler.tasks", map[string]any{
		TaskCollectMessages: map[string]any{"enabled": true, "schedule": "0 */15 * * * *"},
		TaskStaleSweep:      map[string]any{"enabled": true, "schedule": "0 0 3 * * *"},
		TaskWeeklySummaries: map[string]any{"enabled": false, "schedule": "0 0 6 * * 1"},
		TaskSummaryCleanup:  map[string]any{"enabled": true, "schedule": "0 30 4 1 * *"},
		TaskSQLMaintenance:  map[string]any{"enabled": true, "schedule": "0 0 5 * * 0"},
	})

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.not_authorized", DefaultMessages.NotAuthorized)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.timeout", DefaultMessages.Timeout)
	v.SetDefault("messages.code_sent", DefaultMessages.CodeSent)
	v.SetDefault("messages.login_succeeded", DefaultMessages.LoginSucceeded)
}

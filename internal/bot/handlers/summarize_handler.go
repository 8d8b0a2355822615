package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
)

const summarizeUsage = "/summarize <group_id> [days]"

// NewSummarizeHandler returns a handler for /summarize.
func NewSummarizeHandler(deps HandlerDeps) bot.HandlerFunc {
	timeout := deps.Config.Gemini.Timeout + time.Minute

	return newCommand(deps, "summarize", timeout, func(ctx context.Context, args []string) (string, error) {
		if deps.Summarizer == nil {
			return "Summaries are disabled: set gemini.api_key to enable them.", nil
		}
		if len(args) < 1 || len(args) > 2 {
			return "", usage(summarizeUsage)
		}
		var window time.Duration
		if len(args) == 2 {
			days, err := parseInt64(args[1])
			if err != nil || days <= 0 || days > 365 {
				return "", usage(summarizeUsage)
			}
			window = time.Duration(days) * 24 * time.Hour
		}

		group, err := lookupGroup(ctx, deps.Store, args[0])
		if err != nil {
			return "", err
		}
		summary, err := deps.Summarizer.SummarizeRecent(ctx, group, window)
		if err != nil {
			return "", err
		}
		if summary == nil {
			return fmt.Sprintf("No new messages to summarize in %s.", group.Name), nil
		}
		return fmt.Sprintf("📝 %s, %s to %s\n\n%s", group.Name,
			summary.StartDate.Format("2006-01-02"), summary.EndDate.Format("2006-01-02"), summary.Content), nil
	})
}

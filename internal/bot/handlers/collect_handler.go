package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/tgcollector/internal/collector"
)

type collectArgs struct {
	AccountID int64 `validate:"gt=0"`
	Group     string
	Limit     int `validate:"gte=0,lte=100000"`
}

func parseCollect(args []string, usageText string) (collectArgs, error) {
	var parsed collectArgs
	if len(args) < 2 || len(args) > 3 {
		return parsed, usage(usageText)
	}
	id, err := parseInt64(args[0])
	if err != nil {
		return parsed, usage(usageText)
	}
	parsed.AccountID = id
	parsed.Group = args[1]
	if len(args) == 3 {
		limit, err := parseInt64(args[2])
		if err != nil {
			return parsed, usage(usageText)
		}
		parsed.Limit = int(limit)
	}
	return parsed, checkArgs(parsed, usageText)
}

// NewCollectHandler returns a handler for /collect (incremental) or
// /backfill (historical).
func NewCollectHandler(deps HandlerDeps, mode collector.Mode) bot.HandlerFunc {
	name, usageText := "collect", "/collect <account_id> <group_id> [limit]"
	if mode == collector.ModeHistorical {
		name, usageText = "backfill", "/backfill <account_id> <group_id> [limit]"
	}
	// The runner applies collector.timeout itself; this only bounds the command.
	timeout := deps.Config.Collector.Timeout + time.Minute

	return newCommand(deps, name, timeout, func(ctx context.Context, args []string) (string, error) {
		parsed, err := parseCollect(args, usageText)
		if err != nil {
			return "", err
		}
		group, err := lookupGroup(ctx, deps.Store, parsed.Group)
		if err != nil {
			return "", err
		}

		res, err := deps.Runner.CollectOne(ctx, parsed.AccountID, group.ID, parsed.Limit, mode)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("📥 %s: fetched %d, stored %d new, %d already known, %d skipped, %d failed.",
			group.Name, res.Fetched, res.Inserted, res.Existing, res.Skipped, res.Failed), nil
	})
}

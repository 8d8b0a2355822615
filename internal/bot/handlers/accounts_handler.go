package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/edgard/tgcollector/internal/database"
)

const addAccountUsage = "/add_account <phone> [app_id app_hash]"

// NewAccountsHandler returns a handler for /accounts.
func NewAccountsHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "accounts", defaultCommandTimeout, func(ctx context.Context, _ []string) (string, error) {
		return listAccounts(ctx, deps)
	})
}

func listAccounts(ctx context.Context, deps HandlerDeps) (string, error) {
	accounts, err := deps.Store.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "No accounts registered. Use " + addAccountUsage, nil
	}

	var sb strings.Builder
	for _, acc := range accounts {
		state, err := deps.Auth.State(ctx, acc.ID)
		if err != nil {
			return "", err
		}
		assocs, err := deps.Store.ListAccountAssociations(ctx, acc.ID)
		if err != nil {
			return "", err
		}
		active := 0
		for _, a := range assocs {
			if a.IsActive {
				active++
			}
		}
		fmt.Fprintf(&sb, "#%d %s | %s | groups: %d (%d active)\n", acc.ID, acc.PhoneNumber, state, len(assocs), active)
	}
	return strings.TrimSpace(sb.String()), nil
}

type addAccountArgs struct {
	Phone   string `validate:"required,e164"`
	AppID   int    `validate:"gt=0"`
	AppHash string `validate:"required,len=32,hexadecimal"`
}

// NewAddAccountHandler returns a handler for /add_account. Without explicit
// app credentials the telegram.app_id and telegram.app_hash defaults apply.
func NewAddAccountHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "add_account", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		parsed, err := parseAddAccount(args, deps.Config.Telegram.AppID, deps.Config.Telegram.AppHash)
		if err != nil {
			return "", err
		}

		acc := &database.Account{PhoneNumber: parsed.Phone, AppID: parsed.AppID, AppHash: parsed.AppHash}
		if err := deps.Store.CreateAccount(ctx, acc); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Account #%d registered. Run /login %d to sign in.", acc.ID, acc.ID), nil
	})
}

func parseAddAccount(args []string, defaultAppID int, defaultAppHash string) (addAccountArgs, error) {
	parsed := addAccountArgs{AppID: defaultAppID, AppHash: defaultAppHash}
	switch len(args) {
	case 1:
	case 3:
		id, err := parseInt64(args[1])
		if err != nil {
			return parsed, usage(addAccountUsage)
		}
		parsed.AppID = int(id)
		parsed.AppHash = args[2]
	default:
		return parsed, usage(addAccountUsage)
	}
	parsed.Phone = args[0]
	return parsed, checkArgs(parsed, addAccountUsage)
}

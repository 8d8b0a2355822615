package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
)

const (
	groupsUsage = "/groups <account_id>"
	syncUsage   = "/sync_groups <account_id>"
	joinUsage   = "/join <account_id> <@handle|link>"
	toggleUsage = "/toggle <account_id> <group_id>"
)

func parseAccountID(args []string, want int, usageText string) (int64, error) {
	if len(args) != want {
		return 0, usage(usageText)
	}
	id, err := parseInt64(args[0])
	if err != nil || id <= 0 {
		return 0, usage(usageText)
	}
	return id, nil
}

// NewGroupsHandler returns a handler for /groups, which lists an account's
// associations with their group ids.
func NewGroupsHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "groups", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		accountID, err := parseAccountID(args, 1, groupsUsage)
		if err != nil {
			return "", err
		}
		assocs, err := deps.Store.ListAccountAssociations(ctx, accountID)
		if err != nil {
			return "", err
		}
		if len(assocs) == 0 {
			return fmt.Sprintf("Account %d tracks no groups. Use /sync_groups %d or /join.", accountID, accountID), nil
		}

		var sb strings.Builder
		for _, a := range assocs {
			status := "active"
			if !a.IsActive {
				status = "inactive"
			}
			last := "never"
			if a.LastCollection.Valid {
				last = a.LastCollection.Time.UTC().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&sb, "#%d %s (%d) | %s | last collected: %s\n", a.GroupID, a.GroupName, a.PlatformGroupID, status, last)
		}
		return strings.TrimSpace(sb.String()), nil
	})
}

// NewSyncGroupsHandler returns a handler for /sync_groups.
func NewSyncGroupsHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "sync_groups", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		accountID, err := parseAccountID(args, 1, syncUsage)
		if err != nil {
			return "", err
		}
		res, err := deps.GroupSync.SyncAccountGroups(ctx, accountID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("🔄 Synced account %d: %d chats seen, %d new groups, %d new links.",
			accountID, res.ChatsSeen, res.GroupsAdded, res.AssociationsAdded), nil
	})
}

// NewJoinHandler returns a handler for /join.
func NewJoinHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "join", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		accountID, err := parseAccountID(args, 2, joinUsage)
		if err != nil {
			return "", err
		}
		group, err := deps.GroupSync.JoinGroup(ctx, accountID, args[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Joined %s. Group id #%d.", group.Name, group.ID), nil
	})
}

// NewToggleHandler returns a handler for /toggle, which flips an association.
func NewToggleHandler(deps HandlerDeps) bot.HandlerFunc {
	return newCommand(deps, "toggle", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		accountID, err := parseAccountID(args, 2, toggleUsage)
		if err != nil {
			return "", err
		}
		group, err := lookupGroup(ctx, deps.Store, args[1])
		if err != nil {
			return "", err
		}
		assoc, err := deps.Store.GetAssociation(ctx, accountID, group.ID)
		if err != nil {
			return "", err
		}
		if assoc == nil {
			return fmt.Sprintf("Account %d is not linked to group #%d.", accountID, group.ID), nil
		}

		active := !assoc.IsActive
		if err := deps.Store.SetAssociationActive(ctx, accountID, group.ID, active); err != nil {
			return "", err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		return fmt.Sprintf("Collection of %s for account %d %s.", group.Name, accountID, state), nil
	})
}

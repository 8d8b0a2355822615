package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edgard/tgcollector/internal/collector"
	"github.com/edgard/tgcollector/internal/database"
)

func newCollectCmd(flags *rootFlags, historical bool) *cobra.Command {
	var limit int
	use, short, mode := "collect [<account_id> <group_id>]", "Collect new messages (all active associations without arguments)", collector.ModeIncremental
	if historical {
		use, short, mode = "backfill <account_id> <group_id>", "Collect a group's history oldest first", collector.ModeHistorical
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 || (len(args) == 0 && !historical) {
				return nil
			}
			return fmt.Errorf("expected %s", use)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 0 {
				report, err := a.runner.CollectAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d associations: %d succeeded, %d failed, %d skipped, %d new messages.\n",
					report.Associations, report.Succeeded, report.Failed, report.Skipped, report.NewMessages)
				return nil
			}

			accountID, err := parseID("account", args[0])
			if err != nil {
				return err
			}
			group, err := findGroup(ctx, a.store, args[1])
			if err != nil {
				return err
			}
			res, err := a.runner.CollectOne(ctx, accountID, group.ID, limit, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: fetched %d, inserted %d, existing %d, skipped %d, failed %d (run %s).\n",
				group.Name, res.Fetched, res.Inserted, res.Existing, res.Skipped, res.Failed, res.RunID)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 uses the configured limit)")
	return cmd
}

// findGroup accepts a stored group id or a negative platform id.
func findGroup(ctx context.Context, store database.Store, arg string) (*database.Group, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid group id %q", arg)
	}
	var group *database.Group
	if id < 0 {
		group, err = store.GetGroupByPlatformID(ctx, id)
	} else {
		group, err = store.GetGroup(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("group %s not found", arg)
	}
	return group, nil
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newGroupsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Group management",
	}
	cmd.AddCommand(newGroupsListCmd(flags))
	cmd.AddCommand(newGroupsSyncCmd(flags))
	cmd.AddCommand(newGroupsJoinCmd(flags))
	return cmd
}

func newGroupsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <account_id>",
		Short: "List the groups an account collects from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			accountID, err := parseID("account", args[0])
			if err != nil {
				return err
			}
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			assocs, err := a.store.ListAccountAssociations(ctx, accountID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLATFORM ID\tNAME\tACTIVE\tLAST COLLECTION")
			for _, as := range assocs {
				last := "-"
				if as.LastCollection.Valid {
					last = as.LastCollection.Time.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%t\t%s\n", as.GroupID, as.PlatformGroupID, as.GroupName, as.IsActive, last)
			}
			return w.Flush()
		},
	}
}

func newGroupsSyncCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <account_id>",
		Short: "Import the groups the account has joined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			accountID, err := parseID("account", args[0])
			if err != nil {
				return err
			}
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.groupSync.SyncAccountGroups(ctx, accountID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seen %d chats: %d new groups, %d new associations.\n",
				res.ChatsSeen, res.GroupsAdded, res.AssociationsAdded)
			return nil
		},
	}
}

func newGroupsJoinCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "join <account_id> <@handle|link>",
		Short: "Join a public group or channel and start collecting from it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			accountID, err := parseID("account", args[0])
			if err != nil {
				return err
			}
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			group, err := a.groupSync.JoinGroup(ctx, accountID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %s (group #%d, platform id %d).\n", group.Name, group.ID, group.GroupID)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edgard/tgcollector/internal/database"
)

func newAccountCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management",
	}
	cmd.AddCommand(newAccountAddCmd(flags))
	cmd.AddCommand(newAccountListCmd(flags))
	return cmd
}

func newAccountAddCmd(flags *rootFlags) *cobra.Command {
	var appID int
	var appHash string
	cmd := &cobra.Command{
		Use:   "add <phone>",
		Short: "Register an account (defaults to telegram.app_id/app_hash)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			acc := &database.Account{PhoneNumber: args[0], AppID: appID, AppHash: appHash}
			if acc.AppID == 0 {
				acc.AppID = a.cfg.Telegram.AppID
			}
			if acc.AppHash == "" {
				acc.AppHash = a.cfg.Telegram.AppHash
			}
			if err := a.store.CreateAccount(cmd.Context(), acc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account #%d registered. Run `tgcollector login %d` to sign in.\n", acc.ID, acc.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&appID, "app-id", 0, "platform app id")
	cmd.Flags().StringVar(&appHash, "app-hash", "", "platform app hash")
	return cmd
}

func newAccountListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts and their login state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			accounts, err := a.store.ListAccounts(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPHONE\tSTATE\tCREATED")
			for _, acc := range accounts {
				state, err := a.auth.State(ctx, acc.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", acc.ID, acc.PhoneNumber, state, acc.CreatedAt.Local().Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

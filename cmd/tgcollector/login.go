package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var phone string
	var sms bool
	var logout bool
	cmd := &cobra.Command{
		Use:   "login <account_id>",
		Short: "Sign an account in interactively, reading the code from stdin",
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

			if logout {
				if err := a.auth.Logout(ctx, accountID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %d logged out.\n", accountID)
				return nil
			}

			hash, err := a.auth.StartLogin(ctx, accountID, phone, sms)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), "Code: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read code: %w", err)
			}
			code := strings.Join(strings.Fields(line), "")

			if err := a.auth.VerifyCode(ctx, accountID, code, hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %d is now authenticated.\n", accountID)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "replace the stored phone number")
	cmd.Flags().BoolVar(&sms, "sms", false, "request the code by SMS")
	cmd.Flags().BoolVar(&logout, "logout", false, "log the account out instead")
	return cmd
}

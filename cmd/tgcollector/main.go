// Package main is the tgcollector command line: the long-running service
// and one-shot operational subcommands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "tgcollector",
		Short:         "Collect messages from Telegram groups through user accounts",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "./config.yaml", "path to configuration file")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newMigrateCmd(flags))
	root.AddCommand(newAccountCmd(flags))
	root.AddCommand(newLoginCmd(flags))
	root.AddCommand(newGroupsCmd(flags))
	root.AddCommand(newCollectCmd(flags, false))
	root.AddCommand(newCollectCmd(flags, true))
	root.AddCommand(newSummarizeCmd(flags))
	return root
}

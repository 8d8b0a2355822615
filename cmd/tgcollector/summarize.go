package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSummarizeCmd(flags *rootFlags) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "summarize [group_id]",
		Short: "Summarize unprocessed messages of one group, or of every active group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if a.summarizer == nil {
				return errors.New("summaries are disabled: set gemini.api_key")
			}
			if len(args) == 0 {
				n, err := a.summarizer.SummarizeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Generated %d summaries.\n", n)
				return nil
			}

			group, err := findGroup(ctx, a.store, args[0])
			if err != nil {
				return err
			}
			summary, err := a.summarizer.SummarizeRecent(ctx, group, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No new messages in %s.\n", group.Name)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.Content)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses summaries.window)")
	return cmd
}

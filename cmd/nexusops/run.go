package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trigger a batch pre-labeling run on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.RunWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !resp.Accepted {
				fmt.Fprintf(out, "Not started: %s\n", resp.Detail)
				return nil
			}
			fmt.Fprintln(out, "Batch workflow started. Follow progress with `nexusops logs workflow`.")
			return nil
		},
	}
}

func newScoutCommand(ctx *commandContext) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Trigger an acquisition run on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.RunScout(cmd.Context(), mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !resp.Accepted {
				fmt.Fprintf(out, "Not started: %s\n", resp.Detail)
				return nil
			}
			fmt.Fprintf(out, "Scout started in %s mode. Follow progress with `nexusops logs scout`.\n", resp.Detail)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "fast", "Discovery mode: fast or grounded")
	return cmd
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "logs <workflow|scout>",
		Short:     "Print a workflow's buffered progress feed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"workflow", "scout"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Logs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Lines) == 0 {
				fmt.Fprintf(out, "No %s activity yet.\n", resp.Channel)
				return nil
			}
			for _, line := range resp.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

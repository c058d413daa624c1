package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nexusops/internal/api"
)

func newLabelCommand(ctx *commandContext) *cobra.Command {
	var operator string
	var timeSpent int

	cmd := &cobra.Command{
		Use:   "label <item-id> <label>",
		Short: "Submit a human label for a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			itemID, err := resolveItemID(cmd, client, args[0])
			if err != nil {
				return err
			}

			resp, err := client.SubmitLabel(cmd.Context(), itemID, api.SubmitLabelRequest{
				Label:            args[1],
				OperatorID:       operator,
				TimeSpentSeconds: timeSpent,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Labeled %s as %q.\n", shortID(itemID), args[1])
			if resp.Detail != "" {
				fmt.Fprintf(out, "Audit: %s\n", resp.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&operator, "operator", "o", "", "Operator identifier recorded with the label")
	cmd.Flags().IntVar(&timeSpent, "time-spent", 0, "Seconds spent on the item")
	return cmd
}

// resolveItemID accepts either a full item id or a unique prefix as shown in
// the items listing.
func resolveItemID(cmd *cobra.Command, client *apiClient, arg string) (string, error) {
	snapshot, err := client.Snapshot(cmd.Context())
	if err != nil {
		return "", err
	}

	var matches []string
	for _, item := range snapshot.Items {
		if item.ID == arg {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, arg) {
			matches = append(matches, item.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no work item matches %q", arg)
	default:
		return "", fmt.Errorf("item id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

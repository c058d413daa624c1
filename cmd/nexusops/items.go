package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nexusops/internal/api"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List projects and work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			snapshot, err := client.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(snapshot.Projects) > 0 {
				fmt.Fprintln(out, renderProjects(snapshot))
				fmt.Fprintln(out)
			}

			filter := strings.TrimSpace(strings.ToLower(statusFilter))
			rows := make([][]string, 0, len(snapshot.Items))
			for _, item := range snapshot.Items {
				if filter != "" && item.Status != filter {
					continue
				}
				rows = append(rows, itemRow(snapshot, item))
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No work items match.")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Project", "Status", "Prediction", "Human Label"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show items in the given status")
	return cmd
}

func renderProjects(snapshot api.SnapshotResponse) string {
	rows := make([][]string, 0, len(snapshot.Projects))
	for _, project := range snapshot.Projects {
		rows = append(rows, []string{
			shortID(project.ID),
			project.Name,
			formatStatusLabel(project.Type),
			strings.Join(project.Labels, ", "),
			fmt.Sprintf("$%.2f/hr", project.HourlyRate),
		})
	}
	return renderTable(
		[]string{"ID", "Project", "Type", "Labels", "Rate"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func itemRow(snapshot api.SnapshotResponse, item api.ItemView) []string {
	prediction := "-"
	if item.Prediction != nil {
		prediction = fmt.Sprintf("%s (%.0f%%)", item.Prediction.Label, item.Prediction.Confidence*100)
	}
	human := "-"
	if item.HumanLabel != nil {
		human = item.HumanLabel.Label
	}
	return []string{
		shortID(item.ID),
		projectName(snapshot, item.ProjectID),
		formatStatusLabel(item.Status),
		prediction,
		human,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

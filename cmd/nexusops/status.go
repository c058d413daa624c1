package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nexusops/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Nexus Ops Status", colorize) {
				fmt.Fprintln(out, line)
			}

			capKind, capMsg := statusOK, "ready"
			if !status.CapabilityAvailable {
				capKind, capMsg = statusWarn, "no API key configured"
			}
			fmt.Fprintln(out, renderStatusLine("AI capability", capKind, capMsg, colorize))

			if status.Processing {
				fmt.Fprintln(out, renderStatusLine("Batch workflow", statusInfo, "processing ("+status.Stage+")", colorize))
			} else if status.LastError != "" {
				fmt.Fprintln(out, renderStatusLine("Batch workflow", statusError, status.LastError, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Batch workflow", statusOK, "idle", colorize))
			}

			scoutKind, scoutMsg := statusOK, "idle"
			if status.ScoutActive {
				scoutKind, scoutMsg = statusInfo, "acquisition in flight"
			}
			fmt.Fprintln(out, renderStatusLine("Scout", scoutKind, scoutMsg, colorize))

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderItemCounts(status.ItemCounts))
			return nil
		},
	}
}

func renderItemCounts(counts map[string]int) string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	total := 0
	for _, status := range statuses {
		rows = append(rows, []string{formatStatusLabel(status), fmt.Sprintf("%d", counts[status])})
		total += counts[status]
	}
	rows = append(rows, []string{"Total", fmt.Sprintf("%d", total)})

	return renderTable(
		[]string{"Status", "Items"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}

var titleCaser = cases.Title(language.Und)

func formatStatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func projectName(snapshot api.SnapshotResponse, id string) string {
	for _, project := range snapshot.Projects {
		if project.ID == id {
			return project.Name
		}
	}
	return id
}

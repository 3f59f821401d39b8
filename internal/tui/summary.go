package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aristath/scaffold/internal/pipeline"
)

// Summary renders a report as a styled table followed by any failures
// and warnings.
func Summary(report *pipeline.Report) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s  %s",
		StyleTitle.Render(report.Project),
		statusStyle(report.Status).Render(report.Status),
		StyleHelp.Render(report.RunID))
	b.WriteString(header)
	b.WriteString("\n")

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		status := "completed"
		if res.Failed {
			status = "failed"
		}
		optimized := ""
		if res.Optimized {
			optimized = "yes"
		}
		files := ""
		if len(res.Files) > 0 {
			files = fmt.Sprintf("%d", len(res.Files))
		}
		rows = append(rows, []string{
			res.Tier,
			status,
			string(res.Format),
			optimized,
			files,
			res.Duration.Round(time.Millisecond).String(),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleStatusPending).
		Headers("TIER", "STATUS", "FORMAT", "OPTIMIZED", "FILES", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return StyleHeader
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return statusStyle(rows[row][1]).Padding(0, 1)
			}
			return StyleCell
		})
	b.WriteString(t.String())
	b.WriteString("\n")

	for _, res := range report.Results {
		if res.Failed && res.Err != nil {
			b.WriteString(StyleStatusFailed.Render("✗ "+res.Tier) + ": " + res.Err.Error() + "\n")
		}
		for _, w := range res.Warnings {
			b.WriteString(StyleWarning.Render("! "+res.Tier) + ": " + w + "\n")
		}
	}

	b.WriteString(StyleHelp.Render(fmt.Sprintf("%d tiers in %v", len(report.Results), report.Duration().Round(time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}

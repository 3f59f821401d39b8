package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/scaffold/internal/events"
)

type runProgress struct {
	project   string
	status    string
	total     int
	completed int
	failed    int
	skipped   int
}

// ProgressPaneModel shows aggregate progress over every run on the bus.
type ProgressPaneModel struct {
	runs    map[string]*runProgress
	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{runs: make(map[string]*runProgress)}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunProgressEvent:
		p := m.run(msg.Run)
		p.total = msg.Total
		p.completed = msg.Completed
		p.failed = msg.Failed
		p.skipped = msg.Skipped

	case events.RunFinishedEvent:
		p := m.run(msg.Run)
		p.project = msg.Project
		p.status = msg.Status
	}
	return m, nil
}

func (m *ProgressPaneModel) run(id string) *runProgress {
	p, ok := m.runs[id]
	if !ok {
		p = &runProgress{status: StatusRunning}
		m.runs[id] = p
	}
	return p
}

// Totals sums the tier counts of all runs.
func (m ProgressPaneModel) Totals() (total, completed, failed, skipped int) {
	for _, p := range m.runs {
		total += p.total
		completed += p.completed
		failed += p.failed
		skipped += p.skipped
	}
	return
}

// Finished reports how many runs have ended.
func (m ProgressPaneModel) Finished() int {
	n := 0
	for _, p := range m.runs {
		if p.status != StatusRunning {
			n++
		}
	}
	return n
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	total, completed, failed, skipped := m.Totals()
	pending := max(0, total-completed-failed-skipped)

	b.WriteString(fmt.Sprintf("Runs:      %d/%d finished\n", m.Finished(), len(m.runs)))
	b.WriteString(fmt.Sprintf("Tiers:     %d\n", total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", completed))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", failed))))
	b.WriteString(fmt.Sprintf("Skipped:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", skipped))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", pending))))
	b.WriteString("\n")

	if total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (completed * barWidth) / total
		failedWidth := (failed * barWidth) / total
		skippedWidth := (skipped * barWidth) / total
		pendingWidth := barWidth - completedWidth - failedWidth - skippedWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusPending.Render(strings.Repeat("-", max(0, skippedWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, completed+failed+skipped, total))
	}

	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := m.runs[id]
		if p.status == StatusRunning {
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", shortRun(id), p.project, statusStyle(p.status).Render(p.status)))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

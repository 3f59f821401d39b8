package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/scaffold/internal/events"
)

// Tier statuses shown in the list.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// TierState is the display state of one tier of one run.
type TierState struct {
	Run      string
	Tier     string
	Status   string
	Log      []string
	Started  time.Time
	Duration time.Duration
	Warnings int
}

// TierPaneModel is the tier list with a log viewport for the selected tier.
type TierPaneModel struct {
	tiers       map[string]*TierState // run/tier -> state
	order       []string              // insertion order for display
	runs        map[string]bool
	selectedIdx int
	viewport    viewport.Model
	spinner     spinner.Model
	width       int
	height      int
	focused     bool
}

// NewTierPaneModel creates an empty tier pane.
func NewTierPaneModel() TierPaneModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusRunning
	return TierPaneModel{
		tiers:    make(map[string]*TierState),
		runs:     make(map[string]bool),
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}
}

func tierKey(run, tier string) string {
	return run + "/" + tier
}

// Update handles messages for the tier pane.
func (m TierPaneModel) Update(msg tea.Msg) (TierPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)

	case events.TierStartedEvent:
		st := m.state(msg.Run, msg.Tier)
		st.Status = StatusRunning
		st.Started = msg.Timestamp
		m.appendLog(st, fmt.Sprintf("started (%d/%d)", msg.Index, msg.Total))

	case events.GenerationEvent:
		st := m.state(msg.Run, msg.Tier)
		line := fmt.Sprintf("%s pass via %s in %v", msg.Pass, msg.Backend, msg.Duration.Round(time.Millisecond))
		if msg.Err != nil {
			line += fmt.Sprintf(": %v", msg.Err)
		}
		m.appendLog(st, line)

	case events.TierWarningEvent:
		st := m.state(msg.Run, msg.Tier)
		st.Warnings++
		m.appendLog(st, "warning: "+msg.Message)

	case events.TierCompletedEvent:
		st := m.state(msg.Run, msg.Tier)
		st.Status = StatusCompleted
		st.Duration = msg.Duration
		line := fmt.Sprintf("completed in %v, %d bytes", msg.Duration.Round(time.Millisecond), msg.OutputBytes)
		if msg.Files > 0 {
			line += fmt.Sprintf(", %d files", msg.Files)
		}
		m.appendLog(st, line)

	case events.TierFailedEvent:
		st := m.state(msg.Run, msg.Tier)
		st.Status = StatusFailed
		st.Duration = msg.Duration
		m.appendLog(st, fmt.Sprintf("failed (%s): %v", msg.Kind, msg.Err))

	case events.TierSkippedEvent:
		// Only skips that affect the run are listed.
		if msg.Reason == "disabled" {
			break
		}
		st := m.state(msg.Run, msg.Tier)
		st.Status = StatusSkipped
		m.appendLog(st, "skipped: "+msg.Reason)
	}

	return m, cmd
}

func (m *TierPaneModel) state(run, tier string) *TierState {
	key := tierKey(run, tier)
	st, ok := m.tiers[key]
	if !ok {
		st = &TierState{Run: run, Tier: tier}
		m.tiers[key] = st
		m.order = append(m.order, key)
		m.runs[run] = true
		if len(m.order) == 1 {
			m.selectedIdx = 0
		}
	}
	return st
}

func (m *TierPaneModel) appendLog(st *TierState, line string) {
	st.Log = append(st.Log, line)
	if m.selectedKey() == tierKey(st.Run, st.Tier) {
		m.updateViewportContent()
	}
}

// View renders the tier pane.
func (m TierPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 30
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TierPaneModel) renderList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tiers")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, key := range m.order {
		st := m.tiers[key]
		name := st.Tier
		if len(m.runs) > 1 {
			name = shortRun(st.Run) + " " + name
		}
		if len(name) > width-6 {
			name = name[:width-9] + "..."
		}

		line := fmt.Sprintf("%s %s", m.StatusIcon(st.Status), name)
		if st.Warnings > 0 {
			line += StyleWarning.Render(" !")
		}
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m TierPaneModel) StatusIcon(status string) string {
	switch status {
	case StatusRunning:
		return m.spinner.View()
	case StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case StatusFailed:
		return StyleStatusFailed.Render("✗")
	case StatusSkipped:
		return StyleStatusPending.Render("-")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m TierPaneModel) selectedKey() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Selected returns the state of the selected tier.
func (m TierPaneModel) Selected() (TierState, bool) {
	st, ok := m.tiers[m.selectedKey()]
	if !ok {
		return TierState{}, false
	}
	return *st, true
}

func (m *TierPaneModel) updateViewportContent() {
	st, ok := m.tiers[m.selectedKey()]
	if !ok {
		m.viewport.SetContent("Waiting for tiers...")
		return
	}
	m.viewport.SetContent(strings.Join(st.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *TierPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-30-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TierPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TierPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func shortRun(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/scaffold/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTiers PaneID = iota
	PaneProgress
)

const paneCount = 2

// busClosedMsg is delivered once the event bus has been closed.
type busClosedMsg struct{}

// Model is the root Bubble Tea model for the progress view.
type Model struct {
	tierPane     TierPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	cancel       context.CancelFunc
	width        int
	height       int
	done         bool
	quitting     bool
}

// New creates a progress model subscribed to every event on the bus.
// cancel, when set, is called if the user quits before the bus closes.
func New(eventBus *events.EventBus, cancel context.CancelFunc) Model {
	m := Model{
		tierPane:     NewTierPaneModel(),
		progressPane: NewProgressPaneModel(),
		focusedPane:  PaneTiers,
		eventSub:     eventBus.SubscribeAll(1024),
		cancel:       cancel,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), m.tierPane.spinner.Tick)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTiers
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			var cmd tea.Cmd
			m.tierPane, cmd = m.tierPane.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case busClosedMsg:
		m.done = true

	case events.RunProgressEvent, events.RunFinishedEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.Event:
		var cmd tea.Cmd
		m.tierPane, cmd = m.tierPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	default:
		// Spinner ticks stop once every run is done.
		if !m.done {
			var cmd tea.Cmd
			m.tierPane, cmd = m.tierPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the progress view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.tierPane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, main, HelpView(m.done))
}

// Done reports whether the event bus has been closed.
func (m Model) Done() bool {
	return m.done
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	tiersWidth := (m.width * 65) / 100
	availableHeight := m.height - 1 // help bar

	m.tierPane.SetSize(tiersWidth, availableHeight)
	m.progressPane.SetSize(m.width-tiersWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.tierPane.SetFocused(m.focusedPane == PaneTiers)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}

// RunModel shows the progress view until the user quits or ctx is done.
// Create m with New before publishing so no event is missed.
func RunModel(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

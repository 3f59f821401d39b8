package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/events"
	"github.com/aristath/scaffold/internal/pipeline"
)

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_TracksTierLifecycle(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()

	m := feed(t, New(bus, nil),
		tea.WindowSizeMsg{Width: 120, Height: 40},
		events.TierStartedEvent{Run: "r1", Tier: "initial", Index: 1, Total: 2},
		events.GenerationEvent{Run: "r1", Tier: "initial", Backend: "mock", Pass: "draft", Duration: time.Second},
		events.TierWarningEvent{Run: "r1", Tier: "initial", Message: "output is not valid JSON"},
		events.TierCompletedEvent{Run: "r1", Tier: "initial", OutputBytes: 42, Duration: time.Second},
		events.TierStartedEvent{Run: "r1", Tier: "docs", Index: 2, Total: 2},
		events.TierFailedEvent{Run: "r1", Tier: "docs", Kind: "timeout", Err: errors.New("slow")},
		events.RunProgressEvent{Run: "r1", Total: 2, Completed: 1, Failed: 1},
		events.RunFinishedEvent{Run: "r1", Project: "demo", Status: "partial"},
	)

	require.Len(t, m.tierPane.order, 2)
	initial := m.tierPane.tiers[tierKey("r1", "initial")]
	assert.Equal(t, StatusCompleted, initial.Status)
	assert.Equal(t, 1, initial.Warnings)
	assert.Len(t, initial.Log, 4)
	assert.Equal(t, StatusFailed, m.tierPane.tiers[tierKey("r1", "docs")].Status)

	total, completed, failed, _ := m.progressPane.Totals()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, m.progressPane.Finished())

	view := m.View()
	assert.Contains(t, view, "initial")
	assert.Contains(t, view, "Progress")
}

func TestModel_DisabledSkipsAreHidden(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()

	m := feed(t, New(bus, nil),
		events.TierSkippedEvent{Run: "r1", Tier: "optimization", Reason: "disabled"},
		events.TierSkippedEvent{Run: "r1", Tier: "initial", Reason: "before start tier"},
	)

	require.Len(t, m.tierPane.order, 1)
	assert.Equal(t, StatusSkipped, m.tierPane.tiers[tierKey("r1", "initial")].Status)
}

func TestModel_SelectionMovesWithKeys(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()

	m := feed(t, New(bus, nil),
		tea.WindowSizeMsg{Width: 120, Height: 40},
		events.TierStartedEvent{Run: "r1", Tier: "a"},
		events.TierStartedEvent{Run: "r1", Tier: "b"},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")},
	)

	st, ok := m.tierPane.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", st.Tier)

	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	st, _ = m.tierPane.Selected()
	assert.Equal(t, "a", st.Tier)
}

func TestModel_QuitCancelsRunningWork(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Close()

	canceled := false
	m := New(bus, func() { canceled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, canceled)
}

func TestModel_BusClose(t *testing.T) {
	bus := events.NewEventBus()
	m := New(bus, nil)
	bus.Close()

	msg := waitForEvent(m.eventSub)()
	assert.IsType(t, busClosedMsg{}, msg)

	m = feed(t, m, msg)
	assert.True(t, m.Done())

	canceled := false
	m.cancel = func() { canceled = true }
	feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.False(t, canceled)
}

func TestSummary(t *testing.T) {
	report := &pipeline.Report{
		RunID:   "run-1",
		Project: "demo",
		Status:  pipeline.StatusPartial,
		Results: []pipeline.TierResult{
			{Tier: "initial", Format: config.FormatJSON, Optimized: true, Warnings: []string{"output is not valid JSON"}},
			{Tier: "files", Format: config.FormatText, Files: []pipeline.File{{Name: "a.go"}, {Name: "b.go"}}},
			{Tier: "docs", Format: config.FormatMarkdown, Failed: true, Err: &pipeline.TierError{Tier: "docs", Kind: pipeline.KindTimeout, Err: errors.New("slow")}},
		},
	}

	out := Summary(report)
	for _, want := range []string{"demo", "partial", "TIER", "initial", "files", "docs", "markdown", "slow", "output is not valid JSON"} {
		assert.Contains(t, out, want)
	}
}

func TestInitForm_Apply(t *testing.T) {
	f := NewInitForm(config.ProjectOptions{ProjectName: "demo", Language: "go"})
	f.concept = "  a todo app  "

	opts := config.ProjectOptions{Extra: map[string]any{"framework": "chi"}}
	f.Apply(&opts)

	assert.Equal(t, "demo", opts.ProjectName)
	assert.Equal(t, "a todo app", opts.Concept)
	assert.Equal(t, "go", opts.Language)
	assert.Equal(t, "chi", opts.Extra["framework"])
	assert.NotNil(t, f.Form())
}

func TestRequireText(t *testing.T) {
	check := requireText("project name")
	assert.Error(t, check("   "))
	assert.NoError(t, check("demo"))
}

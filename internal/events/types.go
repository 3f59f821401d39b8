package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TierName() string
	RunID() string
}

// Topic constants
const (
	TopicTier = "tier"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTierStarted   = "tier.started"
	EventTypeTierCompleted = "tier.completed"
	EventTypeTierFailed    = "tier.failed"
	EventTypeTierSkipped   = "tier.skipped"
	EventTypeTierWarning   = "tier.warning"
	EventTypeGeneration    = "tier.generation"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunFinished   = "run.finished"
)

// TierStartedEvent is published before a tier renders its prompt.
type TierStartedEvent struct {
	Run       string
	Tier      string
	Index     int // Position among enabled tiers, from 1
	Total     int
	Timestamp time.Time
}

func (e TierStartedEvent) EventType() string { return EventTypeTierStarted }
func (e TierStartedEvent) TierName() string  { return e.Tier }
func (e TierStartedEvent) RunID() string     { return e.Run }

// TierCompletedEvent is published when a tier produced output.
type TierCompletedEvent struct {
	Run         string
	Tier        string
	Format      string
	Optimized   bool
	Files       int
	OutputBytes int
	Duration    time.Duration
	Timestamp   time.Time
}

func (e TierCompletedEvent) EventType() string { return EventTypeTierCompleted }
func (e TierCompletedEvent) TierName() string  { return e.Tier }
func (e TierCompletedEvent) RunID() string     { return e.Run }

// TierFailedEvent is published when a tier fails.
type TierFailedEvent struct {
	Run       string
	Tier      string
	Kind      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TierFailedEvent) EventType() string { return EventTypeTierFailed }
func (e TierFailedEvent) TierName() string  { return e.Tier }
func (e TierFailedEvent) RunID() string     { return e.Run }

// TierSkippedEvent is published for disabled tiers and tiers before the start tier.
type TierSkippedEvent struct {
	Run       string
	Tier      string
	Reason    string
	Timestamp time.Time
}

func (e TierSkippedEvent) EventType() string { return EventTypeTierSkipped }
func (e TierSkippedEvent) TierName() string  { return e.Tier }
func (e TierSkippedEvent) RunID() string     { return e.Run }

// TierWarningEvent reports a degraded but successful tier, such as a failed
// optimize pass or output that is not valid JSON.
type TierWarningEvent struct {
	Run       string
	Tier      string
	Message   string
	Timestamp time.Time
}

func (e TierWarningEvent) EventType() string { return EventTypeTierWarning }
func (e TierWarningEvent) TierName() string  { return e.Tier }
func (e TierWarningEvent) RunID() string     { return e.Run }

// GenerationEvent is published after every generator call.
type GenerationEvent struct {
	Run       string
	Tier      string
	Backend   string
	Pass      string // "draft", "optimize" or "file"
	Duration  time.Duration
	Err       error
	Timestamp time.Time
}

func (e GenerationEvent) EventType() string { return EventTypeGeneration }
func (e GenerationEvent) TierName() string  { return e.Tier }
func (e GenerationEvent) RunID() string     { return e.Run }

// RunProgressEvent is published whenever a tier finishes in any state.
type RunProgressEvent struct {
	Run       string
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TierName() string  { return "" }
func (e RunProgressEvent) RunID() string     { return e.Run }

// RunFinishedEvent is published once when a run ends.
type RunFinishedEvent struct {
	Run       string
	Project   string
	Status    string // "completed", "partial", "failed" or "canceled"
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) TierName() string  { return "" }
func (e RunFinishedEvent) RunID() string     { return e.Run }

// TopicFor returns the topic an event is published on.
func TopicFor(e Event) string {
	switch e.(type) {
	case RunProgressEvent, RunFinishedEvent:
		return TopicRun
	default:
		return TopicTier
	}
}

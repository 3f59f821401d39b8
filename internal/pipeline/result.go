package pipeline

import (
	"time"

	"github.com/aristath/scaffold/internal/config"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial" // Best-effort run with failed tiers
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// File is one file produced by a fan-out tier.
type File struct {
	Name    string `json:"name"`
	Prompt  string `json:"-"`
	Content string `json:"content"`
}

// TierResult is the outcome of one executed tier.
type TierResult struct {
	Tier           string              `json:"tier"`
	RenderedPrompt string              `json:"rendered_prompt"`
	Output         string              `json:"output"`
	Format         config.OutputFormat `json:"format"`
	Optimized      bool                `json:"optimized"`
	Files          []File              `json:"files,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	Duration       time.Duration       `json:"duration"`

	Failed bool       `json:"failed"`
	Err    *TierError `json:"-"`
}

// Report is the ordered record of one Run.
type Report struct {
	RunID    string       `json:"run_id"`
	Project  string       `json:"project"`
	Status   string       `json:"status"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Results  []TierResult `json:"results"`
}

// Failed returns the results of tiers that failed under the best-effort policy.
func (r *Report) Failed() []TierResult {
	var failed []TierResult
	for _, res := range r.Results {
		if res.Failed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Result returns the result for the named tier.
func (r *Report) Result(tier string) (TierResult, bool) {
	for _, res := range r.Results {
		if res.Tier == tier {
			return res, true
		}
	}
	return TierResult{}, false
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r *Report) finish(status string) {
	r.Status = status
	r.Finished = time.Now()
}

// Package pipeline runs the tiers of a project configuration in order,
// feeding each tier's output to the tiers after it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aristath/scaffold/internal/backend"
	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/events"
	"github.com/aristath/scaffold/internal/sysinfo"
	"github.com/aristath/scaffold/internal/template"
)

// Generation passes, as reported in events.
const (
	passDraft    = "draft"
	passOptimize = "optimize"
	passFile     = "file"
)

// Sink receives each tier result as soon as it is recorded. A sink error
// aborts the run regardless of the failure policy.
type Sink interface {
	RecordTier(ctx context.Context, runID string, result TierResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, runID string, result TierResult) error

// RecordTier implements Sink.
func (f SinkFunc) RecordTier(ctx context.Context, runID string, result TierResult) error {
	return f(ctx, runID, result)
}

// Options configures a Runner. The zero value runs every enabled tier with
// the project's failure policy.
type Options struct {
	// Policy overrides the project's failure_policy when set.
	Policy config.FailurePolicy

	// Strict makes unresolved placeholders a render error.
	// The project's strict_variables turns it on too.
	Strict bool

	// StartTier skips enabled tiers declared before it.
	StartTier string

	// Seed holds outputs of earlier tiers, typically from a previous run,
	// for use with StartTier.
	Seed map[string]string

	// Vars are extra variables layered over the project variables, such as "input".
	Vars template.Vars

	// Deadline bounds each generation call. Zero means no deadline.
	Deadline time.Duration

	// SystemInfo provides the "system" variable. Nil uses sysinfo.Host.
	SystemInfo sysinfo.Provider

	// OptimizeTemplate overrides the optimize meta-prompt.
	OptimizeTemplate string

	// RunID identifies the run. Empty generates a UUID.
	RunID string

	Bus    *events.EventBus
	Logger *zap.Logger
	Sinks  []Sink
}

// Runner executes project configurations against one generator.
type Runner struct {
	gen  backend.Generator
	opts Options
}

// New creates a Runner.
func New(gen backend.Generator, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SystemInfo == nil {
		opts.SystemInfo = sysinfo.Host()
	}
	return &Runner{gen: gen, opts: opts}
}

// run is the state of one Run call.
type run struct {
	*Runner
	id       string
	cfg      *config.ProjectConfig
	policy   config.FailurePolicy
	renderer template.Renderer
	logger   *zap.Logger
	report   *Report
	total    int
	done     int
	failed   int
	skipped  int
}

// Run executes the enabled tiers of cfg in document order. Each tier sees a
// snapshot of the project variables plus the outputs of the tiers before
// it, and its own output is added for the tiers after it.
//
// Under the fail-fast policy the first tier failure stops the run: the
// report holds the tiers that completed and the returned *TierError
// matches ErrAborted. Under best effort a failed tier is recorded with an
// empty output and the run continues; Run then returns a nil error.
// Cancellation is observed between tiers.
func (r *Runner) Run(ctx context.Context, cfg *config.ProjectConfig) (*Report, error) {
	rn, err := r.newRun(cfg)
	if err != nil {
		return nil, err
	}
	return rn.execute(ctx)
}

func (r *Runner) newRun(cfg *config.ProjectConfig) (*run, error) {
	policy := r.opts.Policy
	if policy == "" {
		policy = cfg.FailurePolicy
	}
	if policy == "" {
		policy = config.DefaultFailurePolicy
	}
	if policy != config.PolicyFailFast && policy != config.PolicyBestEffort {
		return nil, fmt.Errorf("unknown failure policy %q", policy)
	}

	if start := r.opts.StartTier; start != "" {
		def, ok := cfg.Tiers.Get(start)
		if !ok {
			return nil, fmt.Errorf("start tier %q not found", start)
		}
		if !def.Enabled {
			return nil, fmt.Errorf("start tier %q is disabled", start)
		}
	}

	id := r.opts.RunID
	if id == "" {
		id = uuid.NewString()
	}

	total := 0
	for _, name := range cfg.Tiers.Names() {
		if def, _ := cfg.Tiers.Get(name); def.Enabled {
			total++
		}
	}

	return &run{
		Runner:   r,
		id:       id,
		cfg:      cfg,
		policy:   policy,
		renderer: template.Renderer{Strict: r.opts.Strict || cfg.StrictVariables},
		logger:   r.opts.Logger.With(zap.String("run", id), zap.String("project", cfg.ProjectName)),
		report: &Report{
			RunID:   id,
			Project: cfg.ProjectName,
			Status:  StatusRunning,
			Started: time.Now(),
		},
		total: total,
	}, nil
}

func (rn *run) execute(ctx context.Context) (*Report, error) {
	seed := make(template.Vars, len(rn.opts.Seed))
	for name, out := range rn.opts.Seed {
		seed[name] = template.String(out)
	}
	rc := newRunContext(template.FromMap(rn.cfg.Variables), rn.opts.Vars, seed)

	rn.logger.Info("run started",
		zap.Int("tiers", rn.total),
		zap.String("policy", string(rn.policy)),
		zap.String("backend", rn.gen.Name()))

	started := rn.opts.StartTier == ""
	index := 0
	for _, name := range rn.cfg.Tiers.Names() {
		def, _ := rn.cfg.Tiers.Get(name)
		if !def.Enabled {
			rn.skip(name, "disabled")
			continue
		}
		index++

		if !started {
			if name != rn.opts.StartTier {
				rn.skip(name, "before start tier")
				rn.progress()
				continue
			}
			started = true
		}

		if err := ctx.Err(); err != nil {
			terr := &TierError{Tier: name, Kind: KindCanceled, Err: err, Aborted: true}
			return rn.end(StatusCanceled, terr)
		}

		rn.opts.Bus.Publish(events.TierStartedEvent{
			Run: rn.id, Tier: name, Index: index, Total: rn.total, Timestamp: time.Now(),
		})
		rn.logger.Debug("tier started", zap.String("tier", name), zap.Int("index", index))

		result, terr := rn.runTier(ctx, name, def, rc.snapshot())
		if terr != nil {
			rn.failed++
			rn.opts.Bus.Publish(events.TierFailedEvent{
				Run: rn.id, Tier: name, Kind: string(terr.Kind), Err: terr.Err,
				Duration: result.Duration, Timestamp: time.Now(),
			})
			rn.logger.Error("tier failed",
				zap.String("tier", name),
				zap.String("kind", string(terr.Kind)),
				zap.Duration("duration", result.Duration),
				zap.Error(terr.Err))

			if rn.policy == config.PolicyFailFast {
				terr.Aborted = true
				rn.progress()
				return rn.end(StatusFailed, terr)
			}

			result.Failed = true
			result.Err = terr
			result.Output = ""
			result.Files = nil
			rc.set(name, template.String(""))
		} else {
			rn.done++
			rc.set(name, template.String(result.Output))
			rn.opts.Bus.Publish(events.TierCompletedEvent{
				Run: rn.id, Tier: name, Format: string(result.Format), Optimized: result.Optimized,
				Files: len(result.Files), OutputBytes: len(result.Output),
				Duration: result.Duration, Timestamp: time.Now(),
			})
			rn.logger.Info("tier completed",
				zap.String("tier", name),
				zap.Duration("duration", result.Duration),
				zap.Int("bytes", len(result.Output)),
				zap.Bool("optimized", result.Optimized))
		}

		rn.report.Results = append(rn.report.Results, result)
		rn.progress()

		if err := rn.record(ctx, result); err != nil {
			return rn.end(StatusFailed, err)
		}
	}

	status := StatusCompleted
	if rn.failed > 0 {
		status = StatusPartial
	}
	return rn.end(status, nil)
}

func (rn *run) record(ctx context.Context, result TierResult) error {
	for _, s := range rn.opts.Sinks {
		if err := s.RecordTier(ctx, rn.id, result); err != nil {
			return fmt.Errorf("recording tier %q: %w", result.Tier, err)
		}
	}
	return nil
}

func (rn *run) end(status string, err error) (*Report, error) {
	rn.report.finish(status)
	rn.opts.Bus.Publish(events.RunFinishedEvent{
		Run: rn.id, Project: rn.cfg.ProjectName, Status: status,
		Duration: rn.report.Duration(), Timestamp: rn.report.Finished,
	})

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int("completed", rn.done),
		zap.Int("failed", rn.failed),
		zap.Duration("duration", rn.report.Duration()),
	}
	if err != nil {
		rn.logger.Warn("run stopped", append(fields, zap.Error(err))...)
	} else {
		rn.logger.Info("run finished", fields...)
	}
	return rn.report, err
}

func (rn *run) skip(name, reason string) {
	if reason != "disabled" {
		rn.skipped++
	}
	rn.opts.Bus.Publish(events.TierSkippedEvent{Run: rn.id, Tier: name, Reason: reason, Timestamp: time.Now()})
	rn.logger.Debug("tier skipped", zap.String("tier", name), zap.String("reason", reason))
}

func (rn *run) progress() {
	rn.opts.Bus.Publish(events.RunProgressEvent{
		Run: rn.id, Total: rn.total, Completed: rn.done, Failed: rn.failed, Skipped: rn.skipped,
		Timestamp: time.Now(),
	})
}

// runTier executes one enabled tier against a frozen snapshot of the run
// context. The result's Duration is set even on failure.
func (rn *run) runTier(ctx context.Context, name string, def config.TierDefinition, snapshot template.Vars) (TierResult, *TierError) {
	start := time.Now()
	result := TierResult{Tier: name, Format: def.OutputFormat}

	vars := template.Merge(snapshot, template.FromMap(def.PromptTemplate.Variables))
	if def.UseSystemInfo {
		sys, err := rn.opts.SystemInfo(ctx)
		if err != nil {
			rn.warn(&result, fmt.Sprintf("system info unavailable: %v", err))
		} else {
			vars[config.VarSystem] = sys
		}
	}

	// In-flight generation is not interrupted by cancellation; the
	// per-call deadline still applies.
	genCtx := context.WithoutCancel(ctx)

	var terr *TierError
	if def.EachFileFrom != "" {
		terr = rn.fanOut(genCtx, &result, def, vars)
	} else {
		terr = rn.single(genCtx, &result, def, vars)
	}
	result.Duration = time.Since(start)
	return result, terr
}

func (rn *run) single(ctx context.Context, result *TierResult, def config.TierDefinition, vars template.Vars) *TierError {
	prompt, err := rn.renderer.Render(def.PromptTemplate.Content, vars)
	if err != nil {
		return &TierError{Tier: result.Tier, Kind: KindRender, Err: err}
	}
	result.RenderedPrompt = prompt

	out, optimized, terr := rn.produce(ctx, result, def, prompt, passDraft)
	if terr != nil {
		return terr
	}
	result.Output = out
	result.Optimized = optimized
	return nil
}

// fanOut runs the tier once per file named in the source tier's output,
// with $file_name and $plan bound.
func (rn *run) fanOut(ctx context.Context, result *TierResult, def config.TierDefinition, vars template.Vars) *TierError {
	plan := vars[def.EachFileFrom].String()
	names := ExtractFileNames(plan)
	if len(names) == 0 {
		return &TierError{
			Tier: result.Tier,
			Kind: KindGeneration,
			Err:  fmt.Errorf("no file names found in the output of tier %q", def.EachFileFrom),
		}
	}

	rn.logger.Debug("fan-out", zap.String("tier", result.Tier), zap.Strings("files", names))

	optimized := def.Optimize
	for _, fileName := range names {
		fileVars := template.Merge(vars, template.Vars{
			config.VarFileName: template.String(fileName),
			config.VarPlan:     template.String(plan),
		})

		prompt, err := rn.renderer.Render(def.PromptTemplate.Content, fileVars)
		if err != nil {
			return &TierError{Tier: result.Tier, Kind: KindRender, Err: err}
		}

		content, opt, terr := rn.produce(ctx, result, def, prompt, passFile)
		if terr != nil {
			terr.Err = fmt.Errorf("file %s: %w", fileName, terr.Err)
			return terr
		}
		optimized = optimized && opt
		result.Files = append(result.Files, File{Name: fileName, Prompt: prompt, Content: content})
	}

	result.RenderedPrompt = joinFiles(result.Files, func(f File) string { return f.Prompt })
	result.Output = joinFiles(result.Files, func(f File) string { return f.Content })
	result.Optimized = optimized
	return nil
}

// produce generates, optionally optimizes and post-processes one output.
func (rn *run) produce(ctx context.Context, result *TierResult, def config.TierDefinition, prompt, pass string) (string, bool, *TierError) {
	out, err := rn.generate(ctx, result.Tier, pass, prompt, def.OutputFormat)
	if err != nil {
		kind := KindGeneration
		if errors.Is(err, backend.ErrGenerationTimeout) {
			kind = KindTimeout
		}
		return "", false, &TierError{Tier: result.Tier, Kind: kind, Err: err}
	}

	optimized := false
	if def.Optimize {
		improved, err := rn.optimize(ctx, result.Tier, prompt, out, def.OutputFormat)
		if err != nil {
			rn.warn(result, fmt.Sprintf("optimize pass failed, keeping the first output: %v", err))
		} else {
			out = improved
			optimized = true
		}
	}

	if def.OutputFormat == config.FormatJSON {
		out = rn.checkJSON(result, out)
	}
	return out, optimized, nil
}

func (rn *run) generate(ctx context.Context, tier, pass, prompt string, format config.OutputFormat) (string, error) {
	start := time.Now()
	out, err := rn.gen.Generate(ctx, backend.Request{
		Prompt:  prompt,
		Format:  string(format),
		Tier:    tier,
		Timeout: rn.opts.Deadline,
	})
	rn.opts.Bus.Publish(events.GenerationEvent{
		Run: rn.id, Tier: tier, Backend: rn.gen.Name(), Pass: pass,
		Duration: time.Since(start), Err: err, Timestamp: time.Now(),
	})
	return out, err
}

// optimize asks the generator to improve a draft.
func (rn *run) optimize(ctx context.Context, tier, prompt, draft string, format config.OutputFormat) (string, error) {
	tpl := rn.opts.OptimizeTemplate
	if tpl == "" {
		tpl = rn.cfg.OptimizeTemplate
	}
	if tpl == "" {
		tpl = config.DefaultOptimizeTemplate
	}

	meta := template.Render(tpl, template.Vars{
		"prompt": template.String(prompt),
		"draft":  template.String(draft),
		"format": template.String(string(format)),
	})

	out, err := rn.generate(ctx, tier, passOptimize, meta, format)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("optimizer returned an empty answer")
	}
	return out, nil
}

// checkJSON returns out unchanged when it is valid JSON, the unfenced body
// when it is fenced JSON, and otherwise out verbatim with a warning.
func (rn *run) checkJSON(result *TierResult, out string) string {
	if json.Valid([]byte(out)) {
		return out
	}
	if body := stripCodeFence(out); json.Valid([]byte(body)) {
		return body
	}
	rn.warn(result, "output is not valid JSON, kept as text")
	return out
}

func (rn *run) warn(result *TierResult, msg string) {
	result.Warnings = append(result.Warnings, msg)
	rn.opts.Bus.Publish(events.TierWarningEvent{Run: rn.id, Tier: result.Tier, Message: msg, Timestamp: time.Now()})
	rn.logger.Warn("tier warning", zap.String("tier", result.Tier), zap.String("warning", msg))
}

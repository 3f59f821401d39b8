package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/scaffold/internal/backend"
	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/events"
	"github.com/aristath/scaffold/internal/metrics"
	"github.com/aristath/scaffold/internal/output"
	"github.com/aristath/scaffold/internal/persistence"
	"github.com/aristath/scaffold/internal/pipeline"
	"github.com/aristath/scaffold/internal/template"
	"github.com/aristath/scaffold/internal/tui"
)

type runFlags struct {
	startTier   string
	outputDir   string
	input       string
	enable      []string
	disable     []string
	policy      string
	strict      bool
	resume      string
	useTUI      bool
	metricsFile string
	parallel    int
}

func newRunCmd(c *cli) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [config...]",
		Short: "Run the enabled tiers of one or more project configurations",
		Long: `Runs every enabled tier of each configuration in declaration order and
writes the outputs to the output directory. Several configurations run
concurrently, each with its own output subdirectory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultConfigPath}
			}
			return c.run(cmd.Context(), args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.startTier, "tier", "t", "", "start from this tier, skipping the enabled tiers before it")
	fl.StringVarP(&f.outputDir, "output", "o", "output", "output directory")
	fl.StringVar(&f.input, "input", "", "value for $input: a file path or literal text")
	fl.StringSliceVar(&f.enable, "enable-tier", nil, "enable a tier before running (repeatable)")
	fl.StringSliceVar(&f.disable, "disable-tier", nil, "disable a tier before running (repeatable)")
	fl.StringVar(&f.policy, "policy", "", "failure policy: fail_fast or best_effort (default from config)")
	fl.BoolVar(&f.strict, "strict", false, "fail on unresolved template variables")
	fl.StringVar(&f.resume, "resume", "", "seed tier outputs from a previous run (use with --tier)")
	fl.BoolVar(&f.useTUI, "tui", false, "show live progress in a terminal UI")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	fl.IntVarP(&f.parallel, "parallel", "p", 2, "maximum configurations run at once")
	_ = c.v.BindPFlag("policy", fl.Lookup("policy"))
	return cmd
}

// runEnv holds what every configuration of one invocation shares.
type runEnv struct {
	gen     backend.Generator
	pm      *backend.ProcessManager
	store   *persistence.SQLiteStore
	bus     *events.EventBus
	logger  *zap.Logger
	vars    template.Vars
	seed    map[string]string
	policy  config.FailurePolicy
	timeout time.Duration
	backend string
}

func (c *cli) run(parent context.Context, paths []string, f runFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if f.useTUI && c.logFile == "" {
		// Keep log lines off the alternate screen.
		logger, err := newLogger(c.verbose, filepath.Join(f.outputDir, "scaffold.log"))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = logger
	}

	env, err := c.newRunEnv(ctx, f)
	if err != nil {
		return err
	}
	if env.store != nil {
		defer env.store.Close()
	}

	// Tiers in flight finish their generation call after a cancel; the
	// subprocesses behind it are killed so that happens promptly.
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
			c.logger.Warn("shutdown requested, stopping backend processes")
			if err := env.pm.KillAll(); err != nil {
				c.logger.Error("killing backend processes", zap.Error(err))
			}
		case <-finished:
		}
	}()

	var consumers sync.WaitGroup
	var collector *metrics.Collector
	if f.metricsFile != "" {
		collector = metrics.New()
		sub := env.bus.SubscribeAll(4096)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			collector.Consume(context.Background(), sub)
		}()
	}

	tuiErr := make(chan error, 1)
	if f.useTUI {
		model := tui.New(env.bus, cancel)
		go func() {
			tuiErr <- tui.RunModel(ctx, model)
		}()
	}

	reports := make([]*pipeline.Report, len(paths))
	errs := make([]error, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(max(f.parallel, 1))
	for i, path := range paths {
		outDir := f.outputDir
		if len(paths) > 1 {
			outDir = filepath.Join(f.outputDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		}
		g.Go(func() error {
			reports[i], errs[i] = c.runConfig(ctx, env, path, outDir, f)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", path, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	close(finished)

	env.bus.Close()
	consumers.Wait()

	if f.useTUI {
		if err := <-tuiErr; err != nil && ctx.Err() == nil {
			c.logger.Error("terminal UI", zap.Error(err))
		}
	}

	for _, report := range reports {
		if report != nil {
			fmt.Fprint(c.stdout, tui.Summary(report))
		}
	}

	if collector != nil {
		if err := collector.WriteFile(f.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if dropped := env.bus.Dropped(); dropped > 0 {
		c.logger.Debug("events dropped by slow subscribers", zap.Uint64("count", dropped))
	}

	return errors.Join(errs...)
}

func (c *cli) newRunEnv(ctx context.Context, f runFlags) (*runEnv, error) {
	s := c.settings

	env := &runEnv{
		bus:     events.NewEventBus(),
		logger:  c.logger,
		timeout: s.Timeout,
		backend: s.Backend,
	}

	if s.Policy != "" {
		policy, err := config.ParseFailurePolicy(s.Policy)
		if err != nil {
			return nil, err
		}
		env.policy = policy
	}

	if f.input != "" {
		env.vars = template.Vars{"input": template.String(readInput(f.input))}
	}

	env.pm = backend.NewProcessManager()
	gen, err := c.newGenerator(env.pm)
	if err != nil {
		return nil, err
	}
	env.gen = gen

	if f.resume != "" && s.DBPath == "" {
		return nil, errors.New("--resume needs run history (no database configured)")
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	env.store = store

	if f.resume != "" {
		seed, err := store.TierOutputs(ctx, f.resume)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("resuming run %s: %w", f.resume, err)
		}
		env.seed = seed
	}
	return env, nil
}

// newGenerator builds the configured backend, wrapped with retries and a
// circuit breaker unless retries are off or the backend is the mock.
func (c *cli) newGenerator(pm *backend.ProcessManager) (backend.Generator, error) {
	s := c.settings
	gen, err := backend.New(backend.Config{
		Type:     s.Backend,
		Command:  s.Command,
		Model:    s.Model,
		Provider: s.Provider,
		APIKey:   s.APIKey,
	}, pm)
	if err != nil {
		return nil, err
	}
	if !s.Retry || s.Backend == "mock" {
		return gen, nil
	}
	return backend.NewResilient(gen, backend.NewCircuitBreakerRegistry(c.logger), backend.DefaultRetryConfig(), c.logger), nil
}

// runConfig loads one configuration, runs it and writes its outputs.
func (c *cli) runConfig(ctx context.Context, env *runEnv, path, outDir string, f runFlags) (*pipeline.Report, error) {
	var known []string
	if env.vars != nil {
		known = append(known, "input")
	}
	loadOpts := config.LoadOptions{StrictVariables: f.strict, Known: known}

	cfg, err := config.LoadWithOptions(path, loadOpts)
	if err != nil {
		return nil, err
	}
	if len(f.enable) > 0 || len(f.disable) > 0 {
		if err := toggleTiers(cfg, f.enable, f.disable); err != nil {
			return nil, err
		}
		if err := config.Validate(cfg, config.ValidateOptions{Strict: f.strict || cfg.StrictVariables, Known: known}); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	logger := env.logger.With(zap.String("run", runID), zap.String("config", path))

	writer := output.NewWriter(outDir)
	sinks := []pipeline.Sink{writer}
	if env.store != nil {
		err := env.store.CreateRun(ctx, persistence.Run{
			ID:         runID,
			Project:    cfg.ProjectName,
			ConfigPath: path,
			Backend:    env.backend,
			Status:     pipeline.StatusRunning,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, env.store)
	}

	runner := pipeline.New(env.gen, pipeline.Options{
		Policy:    env.policy,
		Strict:    f.strict,
		StartTier: f.startTier,
		Seed:      env.seed,
		Vars:      env.vars,
		Deadline:  env.timeout,
		RunID:     runID,
		Bus:       env.bus,
		Logger:    logger,
		Sinks:     sinks,
	})

	report, runErr := runner.Run(ctx, cfg)
	if report == nil {
		if env.store != nil {
			_ = env.store.FinishRun(context.WithoutCancel(ctx), runID, pipeline.StatusFailed)
		}
		return nil, runErr
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if env.store != nil {
		if err := env.store.FinishRun(context.WithoutCancel(ctx), runID, report.Status); err != nil {
			errs = append(errs, err)
		}
	}
	if err := writer.WriteManifest(report); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

// toggleTiers applies --enable-tier and --disable-tier.
func toggleTiers(cfg *config.ProjectConfig, enable, disable []string) error {
	for _, name := range enable {
		if !cfg.Tiers.SetEnabled(name, true) {
			return fmt.Errorf("--enable-tier: unknown tier %q", name)
		}
	}
	for _, name := range disable {
		if !cfg.Tiers.SetEnabled(name, false) {
			return fmt.Errorf("--disable-tier: unknown tier %q", name)
		}
	}
	return nil
}

// readInput returns the contents of the file at s, or s itself when it
// does not name a readable file.
func readInput(s string) string {
	if data, err := os.ReadFile(s); err == nil {
		return string(data)
	}
	return s
}

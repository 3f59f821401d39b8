package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aristath/scaffold/internal/config"
)

const defaultConfigPath = "scaffold_config.json"

// cli holds state shared by all commands.
type cli struct {
	v            *viper.Viper
	settingsPath string
	verbose      bool
	logFile      string

	settings *config.Settings
	logger   *zap.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{
		v:      config.NewSettingsViper(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	root := &cobra.Command{
		Use:   "scaffold",
		Short: "Run multi-tier prompt pipelines against a generation backend",
		Long: `scaffold renders each tier's prompt template with the project variables
and the outputs of the tiers before it, sends it to a generation backend and
writes every tier's output to disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.settingsPath, "settings", "", "settings file (default ~/.scaffold/settings.yaml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&c.logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.String("backend", "", "generation backend: claude, codex, goose, gemini or mock")
	pf.String("command", "", "binary to run for CLI backends")
	pf.String("model", "", "model passed to the backend")
	pf.String("provider", "", "goose provider (ollama, lmstudio, ...)")
	pf.Duration("timeout", 0, "deadline for each generation call (0 for none)")
	pf.String("db", "", "run history database (empty string keeps the default)")
	for _, name := range []string{"backend", "command", "model", "provider", "timeout", "db"} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		newRunCmd(c),
		newInitCmd(c),
		newTiersCmd(c),
		newHistoryCmd(c),
	)
	return root
}

// setup loads settings and builds the logger.
func (c *cli) setup() error {
	s, err := config.LoadSettings(c.v, c.settingsPath)
	if err != nil {
		return err
	}
	c.settings = s

	logger, err := newLogger(c.verbose, c.logFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger
	return nil
}

// newLogger builds the production zap logger, at debug level when verbose.
func newLogger(verbose bool, logFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
	}
	return cfg.Build()
}

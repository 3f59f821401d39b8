package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aristath/scaffold/internal/config"
	"github.com/aristath/scaffold/internal/tui"
)

func newInitCmd(c *cli) *cobra.Command {
	var (
		path        string
		opts        config.ProjectOptions
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default three-tier project configuration",
		Long: `Writes a project configuration with the standard tiers: an enabled
planning tier, a disabled per-file generation tier fed by the plan and a
disabled optimization tier. Without --name the values are asked for
interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			if interactive || opts.ProjectName == "" {
				form := tui.NewInitForm(opts)
				if err := form.Run(); err != nil {
					return fmt.Errorf("init form: %w", err)
				}
				form.Apply(&opts)
			}

			cfg := config.DefaultConfig(opts)
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			c.logger.Info("configuration created", zap.String("path", path))
			fmt.Fprintf(c.stdout, "Created %s with tiers: %v\n", path, cfg.Tiers.Names())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&path, "config", "c", defaultConfigPath, "where to write the configuration (.json, .yaml or .yml)")
	f.StringVar(&opts.ProjectName, "name", "", "project name")
	f.StringVar(&opts.Description, "description", "", "project description")
	f.StringVar(&opts.Concept, "concept", "", "what the project should do")
	f.StringVar(&opts.Language, "language", "", "implementation language")
	f.BoolVarP(&interactive, "interactive", "i", false, "ask for values even when --name is set")
	f.BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/scaffold/internal/config"
)

func newTiersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers [config]",
		Short: "List the tiers of a project configuration in execution order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tENABLED\tFORMAT\tOPTIMIZE\tSYSTEM\tDEPENDS ON")
			for _, name := range cfg.Tiers.Names() {
				def, _ := cfg.Tiers.Get(name)
				deps := strings.Join(config.Dependencies(cfg, name), ",")
				if deps == "" {
					deps = "-"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%t\t%t\t%s\n",
					name, def.Enabled, def.OutputFormat, def.Optimize, def.UseSystemInfo, deps)
			}
			return w.Flush()
		},
	}
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/scaffold/internal/persistence"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show the tiers of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("run history is disabled (no database configured)")
			}
			defer store.Close()

			if len(args) == 1 {
				return c.showRun(cmd.Context(), store, args[0])
			}
			return c.listRuns(cmd.Context(), store, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	return cmd
}

// openStore opens the history database, or returns nil when history is off.
func (c *cli) openStore(ctx context.Context) (*persistence.SQLiteStore, error) {
	if c.settings.DBPath == "" {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := persistence.NewSQLiteStore(ctx, c.settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	return store, nil
}

func (c *cli) listRuns(ctx context.Context, store *persistence.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.stdout, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPROJECT\tSTATUS\tBACKEND\tSTARTED\tDURATION")
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Project, r.Status, r.Backend, r.StartedAt.Format(time.DateTime), duration)
	}
	return w.Flush()
}

func (c *cli) showRun(ctx context.Context, store *persistence.SQLiteStore, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Run %s\nProject: %s\nConfig:  %s\nBackend: %s\nStatus:  %s\nStarted: %s\n\n",
		run.ID, run.Project, run.ConfigPath, run.Backend, run.Status, run.StartedAt.Format(time.DateTime))

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tSTATUS\tFORMAT\tFILES\tDURATION\tERROR")
	for _, t := range run.Tiers {
		status := "completed"
		if t.Failed {
			status = "failed"
		}
		errText := "-"
		if t.Error != "" {
			errText = t.ErrorKind + ": " + t.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", t.Tier, status, t.Format, len(t.Files), t.Duration, errText)
	}
	return w.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			rs, err := e.openStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			runs, err := rs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			// Config is bulky and available through show.
			for i := range runs {
				runs[i].Config = ""
				runs[i].Summary = ""
			}

			out := cmd.OutOrStdout()
			if e.json {
				return printJSON(out, map[string]interface{}{"runs": runs, "count": len(runs)})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-20s %-7s %-11s %s\n",
					r.ID[:8], r.Name, r.Rule, r.Status, r.StartedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its summary and recorded metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			rs, err := e.openStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := cmd.Context()
			run, err := resolveRun(ctx, rs, args[0])
			if err != nil {
				return err
			}
			names, err := rs.MetricNames(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if e.json {
				var summary interface{}
				if run.Summary != "" {
					_ = json.Unmarshal([]byte(run.Summary), &summary)
				}
				return printJSON(out, map[string]interface{}{
					"run":     run,
					"summary": summary,
					"metrics": names,
				})
			}

			fmt.Fprintf(out, "Run:      %s\n", run.ID)
			fmt.Fprintf(out, "Name:     %s\n", run.Name)
			fmt.Fprintf(out, "Rule:     %s\n", run.Rule)
			fmt.Fprintf(out, "Seed:     %d\n", run.Seed)
			fmt.Fprintf(out, "Ticks:    %d max\n", run.MaxTicks)
			fmt.Fprintf(out, "Status:   %s\n", run.Status)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Finished: %s (%v)\n", run.FinishedAt.Local().Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
			}
			if run.ResultsDir != "" {
				fmt.Fprintf(out, "Results:  %s\n", run.ResultsDir)
			}
			if len(names) > 0 {
				fmt.Fprintf(out, "Metrics:  %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <run-id> <metric>",
		Short: "Print one recorded metric series",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			rs, err := e.openStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			ctx := cmd.Context()
			run, err := resolveRun(ctx, rs, args[0])
			if err != nil {
				return err
			}
			points, err := rs.Metrics(ctx, run.ID, args[1])
			if err != nil {
				return err
			}
			if len(points) == 0 {
				names, _ := rs.MetricNames(ctx, run.ID)
				return fmt.Errorf("run %s has no metric %q (recorded: %s)", run.ID[:8], args[1], strings.Join(names, ", "))
			}

			out := cmd.OutOrStdout()
			if e.json {
				return printJSON(out, map[string]interface{}{
					"run_id": run.ID,
					"metric": args[1],
					"points": points,
				})
			}
			fmt.Fprintf(out, "tick,%s\n", args[1])
			for _, p := range points {
				fmt.Fprintf(out, "%d,%g\n", p.Tick, p.Value)
			}
			return nil
		},
	}
}

// resolveRun looks a run up by full ID, falling back to a unique ID prefix.
func resolveRun(ctx context.Context, rs store.RunStore, id string) (*store.Run, error) {
	run, err := rs.GetRun(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, store.ErrRunNotFound) {
		return nil, err
	}
	runs, listErr := rs.ListRuns(ctx, 0)
	if listErr != nil {
		return nil, listErr
	}
	var match *store.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

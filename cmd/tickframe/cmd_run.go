package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [experiment.yaml]",
		Short: "Run an experiment file or a built-in preset",
		Long: `Run an experiment to completion, or until interrupted.

Results land in <results.dir>/<name>-<run id>/: the experiment as run,
one metrics file per recorder and format, final.snap and summary.json.
Ctrl+C stops at the next tick boundary and still writes the summary.

Examples:
  tickframe run experiments/example.yaml
  tickframe run --preset gamma-composite --ticks 50 --seed 7
  tickframe run --preset pi-drift --format csv --format arrow`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			preset, _ := cmd.Flags().GetString("preset")
			ticks, _ := cmd.Flags().GetInt("ticks")
			seed, _ := cmd.Flags().GetUint64("seed")
			outDir, _ := cmd.Flags().GetString("out")
			formats, _ := cmd.Flags().GetStringSlice("format")

			cfg, err := loadExperiment(args, preset)
			if err != nil {
				return err
			}
			if ticks > 0 {
				cfg.MaxTicks = ticks
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if outDir != "" {
				cfg.Output.Dir = outDir
			}
			if len(formats) > 0 {
				cfg.Output.Formats = formats
			}

			rs, err := e.openStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			runner := experiment.NewRunner(rs, e.cfg.ResultsRoot(e.root),
				experiment.WithLogger(e.logger),
				experiment.WithLogLevel(e.cfg.Logging.Level),
				experiment.WithFormats(e.cfg.Results.Formats),
				experiment.WithDefaultSeed(e.cfg.Defaults.Seed))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			summary, runErr := runner.Run(ctx, cfg)
			if summary == nil {
				return runErr
			}
			if e.json {
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), summary)
			}
			if runErr != nil && summary.Status != store.StatusInterrupted {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().String("preset", "", "Run a built-in experiment instead of a file (see 'tickframe presets')")
	cmd.Flags().Int("ticks", 0, "Override max_ticks")
	cmd.Flags().Uint64("seed", 0, "Override the experiment seed")
	cmd.Flags().String("out", "", "Override the results root for this run")
	cmd.Flags().StringSlice("format", nil, "Metrics formats: csv, jsonl, arrow (repeatable)")

	return cmd
}

// loadExperiment resolves exactly one of a file argument or a preset name.
func loadExperiment(args []string, preset string) (*experiment.Config, error) {
	switch {
	case len(args) == 1 && preset != "":
		return nil, errors.New("give either an experiment file or --preset, not both")
	case len(args) == 1:
		return experiment.LoadFile(args[0])
	case preset != "":
		return experiment.Preset(preset)
	default:
		return nil, errors.New("an experiment file or --preset is required")
	}
}

func printSummary(w io.Writer, s *experiment.Summary) {
	fmt.Fprintf(w, "Run %s (%s, rule %s, seed %d): %s\n", s.RunID, s.Name, s.Rule, s.Seed, s.Status)
	fmt.Fprintf(w, "  ticks:    %d (final tick %d) in %v\n", s.Ticks, s.FinalTick, s.Duration)
	fmt.Fprintf(w, "  entities: %d  edges: %d", s.Entities, s.Edges)
	if s.Cells > 0 {
		fmt.Fprintf(w, "  canvas cells: %d", s.Cells)
	}
	fmt.Fprintln(w)
	if s.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", s.Error)
	}
	if len(s.Metrics) > 0 {
		keys := make([]string, 0, len(s.Metrics))
		for k := range s.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "  metrics:")
		for _, k := range keys {
			fmt.Fprintf(w, "    %-24s %.6g\n", k, s.Metrics[k])
		}
	}
	fmt.Fprintf(w, "  results:  %s\n", s.ResultsDir)
}

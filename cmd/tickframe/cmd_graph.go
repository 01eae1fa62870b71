package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/snapshot"
	"github.com/nvandessel/tickframe/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <snapshot|run-id>",
		Short: "Render a substrate snapshot as DOT or JSON",
		Long: `Render the graph stored in a snapshot file. When the argument is not a
file it is looked up as a run ID and that run's final snapshot is used.

Nodes are coloured by hop distance from the origin entity.

Examples:
  tickframe graph results/pi-drift-1a2b3c4d/final.snap | dot -Tsvg > g.svg
  tickframe graph 1a2b3c4d --format json
  tickframe graph 1a2b3c4d --positions -o g.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			positions, _ := cmd.Flags().GetBool("positions")
			scale, _ := cmd.Flags().GetFloat64("scale")
			output, _ := cmd.Flags().GetString("output")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			path, err := snapshotPath(cmd, args[0])
			if err != nil {
				return err
			}
			state, header, err := snapshot.Read(path)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case visualization.FormatDOT:
				name := header.Metadata["experiment"]
				fmt.Fprint(out, visualization.RenderDOT(state, visualization.Options{
					Name:      name,
					Positions: positions,
					Scale:     scale,
				}))
			case visualization.FormatJSON:
				if err := printJSON(out, visualization.RenderJSON(state)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}

			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().Bool("positions", false, "Pin nodes at their substrate positions (neato layout)")
	cmd.Flags().Float64("scale", 1, "Position scale factor for --positions")
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	return cmd
}

// snapshotPath returns arg when it names a file, else the final snapshot of
// the run it identifies.
func snapshotPath(cmd *cobra.Command, arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}
	e, err := loadEnv(cmd)
	if err != nil {
		return "", err
	}
	rs, err := e.openStore()
	if err != nil {
		return "", err
	}
	defer rs.Close()

	run, err := resolveRun(cmd.Context(), rs, arg)
	if err != nil {
		return "", fmt.Errorf("%s is neither a snapshot file nor a known run: %w", arg, err)
	}
	if run.ResultsDir == "" {
		return "", fmt.Errorf("run %s has no results directory", run.ID)
	}
	return filepath.Join(run.ResultsDir, experiment.SnapshotFile), nil
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/experiment"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old run directories according to the retention policy",
		Long: `Delete run directories under the results root that fall outside the
retention policy. Policies combine: a directory survives only if every
configured limit keeps it. Flags override results.keep, results.max_age
and results.max_size. Run records in the store are kept.

Examples:
  tickframe prune --dry-run
  tickframe prune --keep 10
  tickframe prune --max-age 2w --max-size 1GB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			keep := e.cfg.Results.Keep
			if cmd.Flags().Changed("keep") {
				keep, _ = cmd.Flags().GetInt("keep")
			}
			maxAge := e.cfg.Results.MaxAge
			if cmd.Flags().Changed("max-age") {
				maxAge, _ = cmd.Flags().GetString("max-age")
			}
			maxSize := e.cfg.Results.MaxSize
			if cmd.Flags().Changed("max-size") {
				maxSize, _ = cmd.Flags().GetString("max-size")
			}

			policy, err := experiment.BuildPolicy(keep, maxAge, maxSize)
			if err != nil {
				return err
			}

			root := e.cfg.ResultsRoot(e.root)
			deleted, err := experiment.Prune(root, policy, dryRun)
			if err != nil {
				return fmt.Errorf("prune %s: %w", root, err)
			}
			e.logger.Debug("prune finished", "root", root, "deleted", len(deleted), "dry_run", dryRun)

			out := cmd.OutOrStdout()
			if e.json {
				if deleted == nil {
					deleted = []string{}
				}
				return printJSON(out, map[string]interface{}{
					"root":    root,
					"dry_run": dryRun,
					"deleted": deleted,
				})
			}
			if len(deleted) == 0 {
				fmt.Fprintln(out, "Nothing to prune.")
				return nil
			}
			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			for _, d := range deleted {
				fmt.Fprintf(out, "%s %s\n", verb, filepath.Base(d))
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	cmd.Flags().Int("keep", 0, "Keep only the N most recent runs (0 = unlimited)")
	cmd.Flags().String("max-age", "", "Delete runs older than this (e.g. 30d, 2w, 720h)")
	cmd.Flags().String("max-size", "", "Keep the newest runs up to this total size (e.g. 500MB)")

	return cmd
}

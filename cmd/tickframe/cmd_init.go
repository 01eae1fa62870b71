package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/config"
	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/store"
)

// ExampleFile is the experiment written by init.
const ExampleFile = "experiments/example.yaml"

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a tickframe project in the root directory",
		Long: `Create .tickframe/config.yaml with default settings and an example
experiment under experiments/. Existing files are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			globalInit, _ := cmd.Flags().GetBool("global")
			jsonOut, _ := cmd.Flags().GetBool("json")

			var dir string
			if globalInit {
				var err error
				dir, err = store.GlobalPath()
				if err != nil {
					return err
				}
			} else {
				dir = store.LocalPath(root)
			}

			created := []string{}
			configPath := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.Default().Save(configPath); err != nil {
					return fmt.Errorf("failed to create %s: %w", configPath, err)
				}
				created = append(created, configPath)
			}

			if !globalInit {
				examplePath := filepath.Join(root, ExampleFile)
				if _, err := os.Stat(examplePath); os.IsNotExist(err) {
					if err := writeExample(examplePath); err != nil {
						return err
					}
					created = append(created, examplePath)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				result := map[string]interface{}{
					"status":  "initialized",
					"path":    dir,
					"created": created,
				}
				if globalInit {
					result["scope"] = "global"
				}
				return printJSON(out, result)
			}
			if globalInit {
				fmt.Fprintf(out, "Initialized global %s/ at %s\n", store.DirName, dir)
			} else {
				fmt.Fprintf(out, "Initialized %s/ in %s\n", store.DirName, root)
			}
			for _, p := range created {
				fmt.Fprintf(out, "  created %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().Bool("global", false, "Initialize the user directory (~/.tickframe/) instead of the project")

	return cmd
}

func writeExample(path string) error {
	cfg, err := experiment.Preset("shell-growth")
	if err != nil {
		return err
	}
	cfg.Name = "example"
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create experiments directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write example experiment: %w", err)
	}
	return nil
}

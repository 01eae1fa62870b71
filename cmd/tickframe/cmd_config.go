package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/config"
	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/store"
)

// configKeys lists the dot-notation keys understood by get and set.
var configKeys = []string{
	"logging.level",
	"results.dir",
	"results.formats",
	"results.keep",
	"results.max_age",
	"results.max_size",
	"store.backend",
	"defaults.seed",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tickframe configuration",
		Long: `View and modify tickframe configuration settings.

Settings merge from ~/.tickframe/config.yaml, then <root>/.tickframe/config.yaml,
then TICKFRAME_* environment variables. set writes the project file unless
--global is given.

Examples:
  tickframe config list                         # Show effective settings
  tickframe config get results.formats          # Get a specific setting
  tickframe config set results.formats csv,arrow
  tickframe config set results.keep 20 --global`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if e.json {
				return printJSON(out, e.cfg)
			}
			for _, key := range configKeys {
				value, _ := getConfigValue(e.cfg, key)
				fmt.Fprintf(out, "  %-18s %v\n", key+":", valueOrDefault(fmt.Sprint(value), "(not set)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			key := args[0]
			value, found := getConfigValue(e.cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s (known: %s)", key, strings.Join(configKeys, ", "))
			}
			if e.json {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			global, _ := cmd.Flags().GetBool("global")
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path := filepath.Join(store.LocalPath(root), config.FileName)
			if global {
				dir, err := store.GlobalPath()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.FileName)
			}

			// Start from the target file alone; other layers and the
			// environment never end up in it.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				loaded, err := config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loaded
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, path)
			return nil
		},
	}

	cmd.Flags().Bool("global", false, "Write ~/.tickframe/config.yaml instead of the project file")

	return cmd
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.TickConfig, key string) (interface{}, bool) {
	switch key {
	case "logging.level":
		return cfg.Logging.Level, true
	case "results.dir":
		return cfg.Results.Dir, true
	case "results.formats":
		return strings.Join(cfg.Results.Formats, ","), true
	case "results.keep":
		return cfg.Results.Keep, true
	case "results.max_age":
		return cfg.Results.MaxAge, true
	case "results.max_size":
		return cfg.Results.MaxSize, true
	case "store.backend":
		return cfg.Store.Backend, true
	case "defaults.seed":
		return cfg.Defaults.Seed, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.TickConfig, key, value string) error {
	switch key {
	case "logging.level":
		cfg.Logging.Level = value
	case "results.dir":
		cfg.Results.Dir = value
	case "results.formats":
		var formats []string
		for _, f := range strings.Split(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		cfg.Results.Formats = formats
	case "results.keep":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid keep count: %s", value)
		}
		cfg.Results.Keep = n
	case "results.max_age":
		if value != "" {
			if _, err := experiment.ParseDuration(value); err != nil {
				return err
			}
		}
		cfg.Results.MaxAge = value
	case "results.max_size":
		if value != "" {
			if _, err := experiment.ParseSize(value); err != nil {
				return err
			}
		}
		cfg.Results.MaxSize = value
	case "store.backend":
		cfg.Store.Backend = value
	case "defaults.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		cfg.Defaults.Seed = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

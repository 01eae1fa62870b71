package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/config"
	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tickframe",
		Short: "Tick-frame physics - discrete substrate experiments",
		Long: `tickframe runs discrete-time substrate experiments.

Each tick applies an update rule (expand, mutate, bias) to a graph of
entities and an optional gamma canvas. Observers record measurements
before and after every tick to CSV, JSON Lines or Arrow files and to the
run store.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (info, debug, trace, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newRunCmd(),
		newPresetsCmd(),
		newRulesCmd(),
		newProbesCmd(),
		newRunsCmd(),
		newShowCmd(),
		newMetricsCmd(),
		newGraphCmd(),
		newSnapshotCmd(),
		newConfigCmd(),
		newPruneCmd(),
		newServeCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// env is what most commands need: the resolved project root, the merged
// configuration and an operational logger.
type env struct {
	root   string
	cfg    *config.TickConfig
	logger *slog.Logger
	json   bool
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")
	level, _ := cmd.Flags().GetString("log-level")

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &env{
		root:   absRoot,
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		json:   jsonOut,
	}, nil
}

func (e *env) openStore() (store.RunStore, error) {
	rs, err := store.Open(e.root, e.cfg.Store.Backend)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return rs, nil
}

// signalContext returns a context cancelled on interrupt (and SIGTERM where
// the platform has it).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

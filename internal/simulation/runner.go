package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/snapshot"
	"github.com/nvandessel/tickframe/internal/store"
)

// Runner executes scenarios against a real SQLite run store.
type Runner struct {
	t      *testing.T
	store  *store.SQLiteRunStore
	runner *experiment.Runner
}

// NewRunner creates a simulation runner with an isolated SQLite store,
// results directory and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteRunStore(tmpDir)
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{
		t:      t,
		store:  s,
		runner: experiment.NewRunner(s, filepath.Join(tmpDir, "results"), experiment.WithFormats([]string{"arrow"})),
	}
}

// Store returns the underlying run store.
func (r *Runner) Store() *store.SQLiteRunStore { return r.store }

// Run executes the scenario and returns its recorded series. Any run error
// fails the test.
func (r *Runner) Run(scenario Scenario) Result {
	r.t.Helper()
	ctx := context.Background()

	summary, err := r.runner.Run(ctx, scenario.Config())
	if err != nil {
		r.t.Fatalf("scenario %s: %v", scenario.Name, err)
	}

	series := make(map[string][]store.Point, len(scenario.Probes))
	for _, name := range scenario.Probes {
		points, err := r.store.Metrics(ctx, summary.RunID, name)
		if err != nil {
			r.t.Fatalf("scenario %s: reading %s: %v", scenario.Name, name, err)
		}
		series[name] = points
	}

	final, _, err := snapshot.Read(filepath.Join(summary.ResultsDir, experiment.SnapshotFile))
	if err != nil {
		r.t.Fatalf("scenario %s: reading final snapshot: %v", scenario.Name, err)
	}

	return Result{Summary: summary, Series: series, Final: final}
}

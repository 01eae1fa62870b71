// Package store defines the RunStore interface for recording experiment
// runs and their per-tick metrics.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown to the store.
var ErrRunNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Run is one execution of an experiment.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Rule       string     `json:"rule"`
	Seed       uint64     `json:"seed"`
	MaxTicks   int        `json:"max_ticks"`
	Status     Status     `json:"status"`
	ResultsDir string     `json:"results_dir,omitempty"`
	Config     string     `json:"config,omitempty"`  // experiment YAML as run
	Summary    string     `json:"summary,omitempty"` // summary JSON, set by FinishRun
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Point is one sample of a metric series.
type Point struct {
	Tick  int64   `json:"tick"`
	Value float64 `json:"value"`
}

// RunStore persists runs and metric samples.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id string, status Status, summary string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recently started runs first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	AppendMetrics(ctx context.Context, runID string, tick int64, values map[string]float64) error
	// Metrics returns the series for one metric ordered by tick.
	Metrics(ctx context.Context, runID, name string) ([]Point, error)
	// MetricNames returns the distinct metric names recorded for a run, sorted.
	MetricNames(ctx context.Context, runID string) ([]string, error)

	Close() error
}

// Backends accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the run store for backend. An empty backend selects SQLite
// under projectRoot.
func Open(projectRoot, backend string) (RunStore, error) {
	switch backend {
	case "", BackendSQLite:
		return NewSQLiteRunStore(projectRoot)
	case BackendMemory:
		return NewInMemoryRunStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (valid: sqlite, memory)", backend)
	}
}

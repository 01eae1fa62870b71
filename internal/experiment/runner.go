package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/tickframe/internal/engine"
	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/rule"
	"github.com/nvandessel/tickframe/internal/snapshot"
	"github.com/nvandessel/tickframe/internal/store"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// Files written into every run directory.
const (
	SummaryFile  = "summary.json"
	SnapshotFile = snapshot.FinalFile
	ConfigFile   = "experiment.yaml"
)

// Summary is the outcome of one run. It is written to summary.json and
// stored with the run.
type Summary struct {
	RunID      string             `json:"run_id"`
	Name       string             `json:"name"`
	Rule       string             `json:"rule"`
	Seed       uint64             `json:"seed"`
	Status     store.Status       `json:"status"`
	Ticks      int                `json:"ticks"`
	FinalTick  int64              `json:"final_tick"`
	Entities   int                `json:"entities"`
	Edges      int                `json:"edges"`
	Cells      int                `json:"cells,omitempty"`
	Duration   time.Duration      `json:"duration_ns"`
	Metrics    map[string]float64 `json:"metrics"`
	ResultsDir string             `json:"results_dir"`
	Error      string             `json:"error,omitempty"`
}

// Runner executes experiments, records them in a RunStore and writes their
// outputs under a results root.
type Runner struct {
	store       store.RunStore
	resultsRoot string
	logger      *slog.Logger
	logLevel    string
	formats     []string
	defaultSeed uint64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLogLevel sets the level that decides whether events.jsonl is written.
func WithLogLevel(level string) RunnerOption {
	return func(r *Runner) { r.logLevel = level }
}

// WithFormats sets the recorder output formats used when an experiment
// does not list its own.
func WithFormats(formats []string) RunnerOption {
	return func(r *Runner) { r.formats = append([]string(nil), formats...) }
}

// WithDefaultSeed sets the seed used when an experiment has none.
func WithDefaultSeed(seed uint64) RunnerOption {
	return func(r *Runner) { r.defaultSeed = seed }
}

// NewRunner returns a runner writing run directories under resultsRoot.
func NewRunner(s store.RunStore, resultsRoot string, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:       s,
		resultsRoot: resultsRoot,
		logger:      logging.Discard(),
		logLevel:    "info",
		formats:     []string{"csv"},
		defaultSeed: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRNG returns the deterministic generator used for a given seed.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Run validates cfg, runs it to completion and writes its outputs.
//
// On error the summary is still returned (and written) whenever the run got
// as far as creating its results directory. A cancelled context yields
// status interrupted and an error wrapping context.Canceled.
func (r *Runner) Run(ctx context.Context, cfg *Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = r.defaultSeed
	}
	rng := NewRNG(seed)

	state, err := substrate.Build(cfg.Initial.Kind, cfg.Initial.Params, rng)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: initial state: %w", cfg.Name, err)
	}
	updateRule, err := rule.New(cfg.Rule.Name, cfg.Rule.Params, rng)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", cfg.Name, err)
	}

	runID := uuid.NewString()
	root := r.resultsRoot
	if cfg.Output.Dir != "" {
		root = cfg.Output.Dir
	}
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", cfg.Name, runID[:8]))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("experiment %s: creating results directory: %w", cfg.Name, err)
	}

	resolved := *cfg
	resolved.Seed = seed
	cfgYAML, err := resolved.Marshal()
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", cfg.Name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), cfgYAML, 0644); err != nil {
		return nil, fmt.Errorf("experiment %s: writing config copy: %w", cfg.Name, err)
	}

	started := time.Now().UTC()
	if err := r.store.CreateRun(ctx, store.Run{
		ID:         runID,
		Name:       cfg.Name,
		Rule:       cfg.Rule.Name,
		Seed:       seed,
		MaxTicks:   cfg.MaxTicks,
		Status:     store.StatusRunning,
		ResultsDir: dir,
		Config:     string(cfgYAML),
		StartedAt:  started,
	}); err != nil {
		return nil, fmt.Errorf("experiment %s: recording run: %w", cfg.Name, err)
	}

	logger := r.logger.With("run_id", runID, "experiment", cfg.Name)
	logger.Info("run started", "rule", cfg.Rule.Name, "seed", seed, "max_ticks", cfg.MaxTicks, "dir", dir)

	summary := &Summary{
		RunID:      runID,
		Name:       cfg.Name,
		Rule:       cfg.Rule.Name,
		Seed:       seed,
		ResultsDir: dir,
	}

	observers, runErr := r.buildObservers(cfg, dir, runID)
	final := state
	eng := engine.New(state, updateRule, observers, engine.WithLogger(logger))
	if runErr == nil {
		final, runErr = eng.Run(ctx, cfg.MaxTicks)
	}
	if err := observer.CloseAll(observers); err != nil && runErr == nil {
		runErr = err
	}

	summary.Ticks = eng.Ticks()
	summary.Duration = time.Since(started)
	summary.Metrics = finiteOnly(observer.Summaries(observers))
	switch {
	case runErr == nil:
		summary.Status = store.StatusCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		summary.Status = store.StatusInterrupted
	default:
		summary.Status = store.StatusFailed
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if final != nil {
		summary.FinalTick = final.Tick
		summary.Entities = final.Len()
		summary.Edges = final.Graph.EdgeCount()
		if final.Canvas != nil {
			summary.Cells = final.Canvas.Len()
		}
		meta := map[string]string{"run_id": runID, "experiment": cfg.Name}
		if err := snapshot.Write(filepath.Join(dir, SnapshotFile), final, meta); err != nil {
			logger.Warn("failed to write snapshot", "error", err)
		}
	}

	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("experiment %s: encoding summary: %w", cfg.Name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), summaryJSON, 0644); err != nil {
		logger.Warn("failed to write summary", "error", err)
	}

	// The run context may already be cancelled; the final status must still land.
	if err := r.store.FinishRun(context.WithoutCancel(ctx), runID, summary.Status, string(summaryJSON)); err != nil {
		logger.Warn("failed to record run status", "error", err)
	}

	logger.Info("run finished",
		"status", summary.Status,
		"ticks", summary.Ticks,
		"entities", summary.Entities,
		"edges", summary.Edges,
		"duration", summary.Duration)

	if runErr != nil {
		return summary, fmt.Errorf("experiment %s: %w", cfg.Name, runErr)
	}
	return summary, nil
}

// buildObservers instantiates the configured observers. Recorders write one
// file per format plus rows into the run store. Observers built before an
// error are still returned so the caller can close them.
func (r *Runner) buildObservers(cfg *Config, dir, runID string) ([]observer.Observer, error) {
	formats := cfg.Output.Formats
	if len(formats) == 0 {
		formats = r.formats
	}

	var observers []observer.Observer
	hasEvents := false
	for _, oc := range cfg.Observers {
		name := oc.DisplayName()
		switch oc.Kind {
		case KindRecorder:
			var sinks []observer.Sink
			for _, f := range formats {
				sink, err := newFileSink(f, filepath.Join(dir, name+"."+f))
				if err != nil {
					closeSinks(sinks)
					return observers, fmt.Errorf("observer %s: %w", name, err)
				}
				sinks = append(sinks, sink)
			}
			sinks = append(sinks, observer.NewStoreSink(r.store, runID))
			rec, err := observer.NewRecorder(name, oc.Every, oc.Probes, sinks...)
			if err != nil {
				closeSinks(sinks)
				return observers, err
			}
			observers = append(observers, rec)
		case KindShell:
			observers = append(observers, observer.NewShellObserver())
		case KindPiDrift:
			observers = append(observers, observer.NewPiDriftObserver(oc.Window))
		case KindCentrality:
			observers = append(observers, observer.NewCentralityObserver(oc.Every))
		case KindEvents:
			hasEvents = true
			observers = append(observers, observer.NewEventObserver(logging.NewEventLogger(dir, r.logLevel)))
		default:
			return observers, fmt.Errorf("%w: unknown observer kind %q", ErrInvalidConfig, oc.Kind)
		}
	}
	// Debug and trace runs always get per-tick events.
	if !hasEvents && logging.ParseLevel(r.logLevel) < slog.LevelInfo {
		observers = append(observers, observer.NewEventObserver(logging.NewEventLogger(dir, r.logLevel)))
	}
	return observers, nil
}

func newFileSink(format, path string) (observer.Sink, error) {
	switch format {
	case "csv":
		sink, err := observer.NewCSVSink(path)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "jsonl":
		sink, err := observer.NewJSONLSink(path)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "arrow":
		return observer.NewArrowSink(path), nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, format)
	}
}

func closeSinks(sinks []observer.Sink) {
	for _, s := range sinks {
		s.Close()
	}
}

// finiteOnly drops NaN and infinite values, which JSON cannot encode.
func finiteOnly(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

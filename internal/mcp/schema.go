package mcp

import (
	"time"
)

// RunInput defines the input for the tickframe_run tool.
type RunInput struct {
	Preset string `json:"preset,omitempty" jsonschema:"built-in experiment name (see tickframe_presets); set this or path"`
	Path   string `json:"path,omitempty" jsonschema:"experiment YAML file, relative to the project root; set this or preset"`
	Ticks  int    `json:"ticks,omitempty" jsonschema:"override max_ticks (must be positive when set)"`
	Seed   uint64 `json:"seed,omitempty" jsonschema:"override the experiment seed"`
}

// RunOutput defines the output for the tickframe_run tool.
type RunOutput struct {
	RunID      string             `json:"run_id" jsonschema:"ID of the recorded run"`
	Name       string             `json:"name" jsonschema:"experiment name"`
	Status     string             `json:"status" jsonschema:"completed, failed or interrupted"`
	Ticks      int                `json:"ticks" jsonschema:"ticks executed"`
	Entities   int                `json:"entities" jsonschema:"entities in the final state"`
	Edges      int                `json:"edges" jsonschema:"edges in the final state"`
	Metrics    map[string]float64 `json:"metrics,omitempty" jsonschema:"observer summary values"`
	ResultsDir string             `json:"results_dir" jsonschema:"directory holding CSV/Arrow metrics, summary.json and final.snap"`
	Message    string             `json:"message" jsonschema:"human-readable result"`
}

// RunsInput defines the input for the tickframe_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum runs to return, newest first (default 20)"`
}

// RunsOutput defines the output for the tickframe_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs" jsonschema:"recorded runs"`
	Count int           `json:"count" jsonschema:"number of runs returned"`
}

// RunListItem provides a list view of a run.
type RunListItem struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Rule       string     `json:"rule"`
	Seed       uint64     `json:"seed"`
	MaxTicks   int        `json:"max_ticks"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MetricsInput defines the input for the tickframe_metrics tool.
type MetricsInput struct {
	RunID  string `json:"run_id" jsonschema:"run ID from tickframe_runs"`
	Metric string `json:"metric,omitempty" jsonschema:"metric name; omit to list the recorded metric names"`
}

// MetricsOutput defines the output for the tickframe_metrics tool.
type MetricsOutput struct {
	RunID  string        `json:"run_id"`
	Metric string        `json:"metric,omitempty"`
	Names  []string      `json:"names,omitempty" jsonschema:"recorded metric names, when no metric was requested"`
	Points []MetricPoint `json:"points,omitempty" jsonschema:"samples ordered by tick"`
	Count  int           `json:"count" jsonschema:"number of names or points returned"`
}

// MetricPoint is one sample. Value is null when the probe was undefined.
type MetricPoint struct {
	Tick  int64    `json:"tick"`
	Value *float64 `json:"value"`
}

// GraphInput defines the input for the tickframe_graph tool.
type GraphInput struct {
	RunID  string `json:"run_id" jsonschema:"run ID from tickframe_runs"`
	Format string `json:"format,omitempty" jsonschema:"dot or json (default json)"`
}

// GraphOutput defines the output for the tickframe_graph tool.
type GraphOutput struct {
	RunID    string `json:"run_id"`
	Format   string `json:"format"`
	Tick     int64  `json:"tick" jsonschema:"tick of the final snapshot"`
	Entities int    `json:"entities"`
	Edges    int    `json:"edges"`
	Graph    string `json:"graph" jsonschema:"rendered graph"`
}

// PresetsInput defines the input for the tickframe_presets tool.
type PresetsInput struct{}

// PresetsOutput defines the output for the tickframe_presets tool.
type PresetsOutput struct {
	Presets []PresetItem `json:"presets" jsonschema:"built-in experiments"`
	Rules   []RuleItem   `json:"rules" jsonschema:"registered update rules"`
	Probes  []string     `json:"probes" jsonschema:"probe names usable in recorder observers"`
}

// PresetItem summarizes a built-in experiment.
type PresetItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rule        string   `json:"rule"`
	Initial     string   `json:"initial"`
	MaxTicks    int      `json:"max_ticks"`
	Observers   []string `json:"observers"`
}

// RuleItem describes an update rule.
type RuleItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
}

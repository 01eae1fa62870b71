package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/pathutil"
	"github.com/nvandessel/tickframe/internal/ratelimit"
	"github.com/nvandessel/tickframe/internal/rule"
	"github.com/nvandessel/tickframe/internal/sanitize"
	"github.com/nvandessel/tickframe/internal/snapshot"
	"github.com/nvandessel/tickframe/internal/visualization"
)

const (
	defaultRunsLimit = 20
	recentRunsURI    = "tickframe://runs/recent"

	// MaxToolTicks caps max_ticks for runs started through tickframe_run.
	MaxToolTicks = 10000
)

// registerTools registers all tickframe MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tickframe_run",
		Description: "Run a tick-frame experiment (built-in preset or YAML file) and record it",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tickframe_runs",
		Description: "List recorded experiment runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tickframe_metrics",
		Description: "Get the per-tick series of one metric of a run, or list its metric names",
	}, s.handleMetrics)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tickframe_graph",
		Description: "Render the final substrate graph of a run as DOT (Graphviz) or JSON",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tickframe_presets",
		Description: "List built-in experiments, update rules and probes",
	}, s.handlePresets)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         recentRunsURI,
		Name:        "tickframe-recent-runs",
		Description: "The most recent experiment runs and their outcomes.",
		MIMEType:    "text/markdown",
	}, s.handleRecentRunsResource)
}

// handleRecentRunsResource lists the latest runs as a markdown table.
func (s *Server) handleRecentRunsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Recent tickframe runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs recorded yet. Start one with `tickframe_run`.\n")
	} else {
		b.WriteString("| ID | Experiment | Rule | Status | Started |\n|---|---|---|---|---|\n")
		for _, r := range runs {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				r.ID[:min(8, len(r.ID))], sanitize.TableCell(r.Name), sanitize.TableCell(r.Rule),
				r.Status, r.StartedAt.Format(time.RFC3339))
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      recentRunsURI,
			MIMEType: "text/markdown",
			Text:     b.String(),
		}},
	}, nil
}

// loadExperiment resolves the preset or path argument of tickframe_run.
func (s *Server) loadExperiment(args RunInput) (*experiment.Config, error) {
	switch {
	case args.Preset != "" && args.Path != "":
		return nil, fmt.Errorf("set either preset or path, not both")
	case args.Preset != "":
		return experiment.Preset(args.Preset)
	case args.Path != "":
		path, err := pathutil.Resolve(s.root, args.Path)
		if err != nil {
			return nil, err
		}
		return experiment.LoadFile(path)
	default:
		return nil, fmt.Errorf("one of preset or path is required")
	}
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tickframe_run", start, retErr, sanitizeToolParams(map[string]interface{}{
			"preset": args.Preset, "path": args.Path, "ticks": args.Ticks, "seed": args.Seed,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "tickframe_run"); err != nil {
		return nil, RunOutput{}, err
	}
	if args.Ticks < 0 {
		return nil, RunOutput{}, fmt.Errorf("ticks must be positive, got %d", args.Ticks)
	}

	cfg, err := s.loadExperiment(args)
	if err != nil {
		return nil, RunOutput{}, err
	}
	if args.Ticks > 0 {
		cfg.MaxTicks = args.Ticks
	}
	if cfg.MaxTicks > MaxToolTicks {
		return nil, RunOutput{}, fmt.Errorf("max_ticks %d exceeds the limit of %d for tool runs", cfg.MaxTicks, MaxToolTicks)
	}
	if args.Seed != 0 {
		cfg.Seed = args.Seed
	}
	if cfg.Output.Dir != "" {
		dir, err := pathutil.Resolve(s.root, cfg.Output.Dir)
		if err != nil {
			return nil, RunOutput{}, fmt.Errorf("output.dir: %w", err)
		}
		cfg.Output.Dir = dir
	}

	summary, err := s.runner.Run(ctx, cfg)
	if summary == nil {
		return nil, RunOutput{}, err
	}
	out := RunOutput{
		RunID:      summary.RunID,
		Name:       summary.Name,
		Status:     string(summary.Status),
		Ticks:      summary.Ticks,
		Entities:   summary.Entities,
		Edges:      summary.Edges,
		Metrics:    summary.Metrics,
		ResultsDir: summary.ResultsDir,
	}
	if err != nil {
		return nil, out, err
	}
	out.Message = fmt.Sprintf("Run %s of %s %s after %d ticks: %d entities, %d edges.",
		summary.RunID[:8], summary.Name, summary.Status, summary.Ticks, summary.Entities, summary.Edges)
	return nil, out, nil
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tickframe_runs", start, retErr, sanitizeToolParams(map[string]interface{}{"limit": args.Limit}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "tickframe_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			ID:         r.ID,
			Name:       r.Name,
			Rule:       r.Rule,
			Seed:       r.Seed,
			MaxTicks:   r.MaxTicks,
			Status:     string(r.Status),
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

func (s *Server) handleMetrics(ctx context.Context, req *sdk.CallToolRequest, args MetricsInput) (_ *sdk.CallToolResult, _ MetricsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tickframe_metrics", start, retErr, sanitizeToolParams(map[string]interface{}{
			"run_id": args.RunID, "metric": args.Metric,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "tickframe_metrics"); err != nil {
		return nil, MetricsOutput{}, err
	}
	if args.RunID == "" {
		return nil, MetricsOutput{}, fmt.Errorf("run_id is required")
	}

	if args.Metric == "" {
		names, err := s.store.MetricNames(ctx, args.RunID)
		if err != nil {
			return nil, MetricsOutput{}, err
		}
		return nil, MetricsOutput{RunID: args.RunID, Names: names, Count: len(names)}, nil
	}

	points, err := s.store.Metrics(ctx, args.RunID, args.Metric)
	if err != nil {
		return nil, MetricsOutput{}, err
	}
	out := MetricsOutput{RunID: args.RunID, Metric: args.Metric, Points: make([]MetricPoint, len(points))}
	for i, p := range points {
		out.Points[i] = MetricPoint{Tick: p.Tick}
		if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
			v := p.Value
			out.Points[i].Value = &v
		}
	}
	out.Count = len(out.Points)
	return nil, out, nil
}

func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tickframe_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"run_id": args.RunID, "format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "tickframe_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := visualization.FormatJSON
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		format = f
	}

	run, err := s.store.GetRun(ctx, args.RunID)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	state, _, err := snapshot.Read(filepath.Join(run.ResultsDir, experiment.SnapshotFile))
	if err != nil {
		return nil, GraphOutput{}, fmt.Errorf("run %s has no readable snapshot: %w", run.ID, err)
	}

	out := GraphOutput{
		RunID:    run.ID,
		Format:   string(format),
		Tick:     state.Tick,
		Entities: state.Len(),
		Edges:    state.Graph.EdgeCount(),
	}
	if format == visualization.FormatDOT {
		out.Graph = visualization.RenderDOT(state, visualization.Options{Name: run.Name, Positions: true})
		return nil, out, nil
	}
	data, err := json.Marshal(visualization.RenderJSON(state))
	if err != nil {
		return nil, GraphOutput{}, fmt.Errorf("failed to encode graph: %w", err)
	}
	out.Graph = string(data)
	return nil, out, nil
}

func (s *Server) handlePresets(ctx context.Context, req *sdk.CallToolRequest, args PresetsInput) (_ *sdk.CallToolResult, _ PresetsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("tickframe_presets", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.limiters, "tickframe_presets"); err != nil {
		return nil, PresetsOutput{}, err
	}

	var out PresetsOutput
	for _, name := range experiment.PresetNames() {
		cfg, err := experiment.Preset(name)
		if err != nil {
			return nil, PresetsOutput{}, err
		}
		item := PresetItem{
			Name:        cfg.Name,
			Description: cfg.Description,
			Rule:        cfg.Rule.Name,
			Initial:     cfg.Initial.Kind,
			MaxTicks:    cfg.MaxTicks,
		}
		for _, o := range cfg.Observers {
			item.Observers = append(item.Observers, o.DisplayName())
		}
		out.Presets = append(out.Presets, item)
	}
	for _, info := range rule.Describe() {
		out.Rules = append(out.Rules, RuleItem{Name: info.Name, Description: info.Description, Params: info.Params})
	}
	out.Probes = observer.ProbeNames()
	return nil, out, nil
}

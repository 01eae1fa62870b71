package observer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/tickframe/internal/field"
	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/store"
	"github.com/nvandessel/tickframe/internal/substrate"
)

func lattice(t *testing.T, size int) *substrate.State {
	t.Helper()
	s, err := substrate.Build("lattice", substrate.Params{"size": float64(size), "dims": 2}, nil)
	if err != nil {
		t.Fatalf("build lattice: %v", err)
	}
	return s
}

func evalProbe(t *testing.T, name string, s *substrate.State) float64 {
	t.Helper()
	p, err := LookupProbe(name)
	if err != nil {
		t.Fatalf("LookupProbe(%s): %v", name, err)
	}
	v, err := p(context.Background(), s)
	if err != nil {
		t.Fatalf("probe %s: %v", name, err)
	}
	return v
}

func TestProbes_Lattice(t *testing.T) {
	s := lattice(t, 5)
	tests := []struct {
		probe string
		want  float64
	}{
		{"entities", 25},
		{"edges", 40},
		{"mean_degree", 3.2},
		{"components", 1},
		{"horizon_radius", 4},
		{"pi_estimate", 13.0 / 4.0},
		{"gamma_total", 0},
		{"gamma_support", 0},
		{"tick", 0},
	}
	for _, tt := range tests {
		t.Run(tt.probe, func(t *testing.T) {
			if got := evalProbe(t, tt.probe, s); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s = %f, want %f", tt.probe, got, tt.want)
			}
		})
	}
}

func TestProbes_EmptyState(t *testing.T) {
	s := substrate.NewState()
	for _, name := range ProbeNames() {
		t.Run(name, func(t *testing.T) {
			v := evalProbe(t, name, s)
			if math.IsNaN(v) {
				t.Errorf("%s returned NaN on empty state", name)
			}
		})
	}
}

func TestProbes_Gamma(t *testing.T) {
	s := substrate.NewState()
	s.Spawn(nil, &substrate.Vec3{})
	s.Canvas = field.New(0)
	s.Canvas.Set(field.Coord{}, 2)
	s.Canvas.Set(field.Coord{X: 1}, 1)

	if got := evalProbe(t, "gamma_total", s); got != 3 {
		t.Errorf("gamma_total = %f, want 3", got)
	}
	if got := evalProbe(t, "gamma_max", s); got != 2 {
		t.Errorf("gamma_max = %f, want 2", got)
	}
	if got := evalProbe(t, "gamma_support", s); got != 2 {
		t.Errorf("gamma_support = %f, want 2", got)
	}
}

func TestProbes_HubScoreAndRadius(t *testing.T) {
	s := substrate.NewState()
	hub := s.Spawn(nil, &substrate.Vec3{})
	for i := 0; i < 4; i++ {
		leaf := s.Spawn(nil, &substrate.Vec3{X: 2})
		_ = s.Graph.AddEdge(hub.ID, leaf.ID)
	}
	if got := evalProbe(t, "hub_score", s); got <= 1 {
		t.Errorf("hub_score = %f, want > 1", got)
	}
	// Four of five entities sit at distance 2.
	if got := evalProbe(t, "mean_radius", s); math.Abs(got-1.6) > 1e-9 {
		t.Errorf("mean_radius = %f, want 1.6", got)
	}
	if got := evalProbe(t, "degree_stddev", s); got <= 0 {
		t.Errorf("degree_stddev = %f, want > 0", got)
	}
}

func TestLookupProbe_Unknown(t *testing.T) {
	if _, err := LookupProbe("entropy"); !errors.Is(err, ErrUnknownProbe) {
		t.Errorf("expected ErrUnknownProbe, got %v", err)
	}
	for _, name := range ProbeNames() {
		if DescribeProbe(name) == "" {
			t.Errorf("probe %s has no description", name)
		}
	}
}

type memSink struct {
	cols   []string
	ticks  []int64
	rows   [][]float64
	closed bool
}

func (m *memSink) WriteHeader(cols []string) error {
	m.cols = cols
	return nil
}

func (m *memSink) WriteRow(_ context.Context, tick int64, vals []float64) error {
	m.ticks = append(m.ticks, tick)
	m.rows = append(m.rows, vals)
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestRecorder_EveryAndSummary(t *testing.T) {
	sink := &memSink{}
	rec, err := NewRecorder("metrics", 2, []string{"tick", "entities"}, sink)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	s := substrate.NewState()
	ctx := context.Background()
	for tick := int64(1); tick <= 5; tick++ {
		s.Spawn(nil, nil)
		s.Tick = tick
		if err := rec.AfterTick(ctx, s); err != nil {
			t.Fatalf("AfterTick: %v", err)
		}
	}

	if len(sink.ticks) != 2 || sink.ticks[0] != 2 || sink.ticks[1] != 4 {
		t.Errorf("recorded ticks = %v, want [2 4]", sink.ticks)
	}
	if len(sink.cols) != 2 || sink.cols[1] != "entities" {
		t.Errorf("header = %v", sink.cols)
	}
	sum := rec.Summary()
	if sum["entities"] != 4 || sum["entities_min"] != 2 || sum["entities_max"] != 4 {
		t.Errorf("summary = %v", sum)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
}

func TestNewRecorder_Errors(t *testing.T) {
	if _, err := NewRecorder("r", 1, nil); err == nil {
		t.Error("expected error for empty probe list")
	}
	if _, err := NewRecorder("r", 1, []string{"nope"}); !errors.Is(err, ErrUnknownProbe) {
		t.Errorf("expected ErrUnknownProbe, got %v", err)
	}
	if _, err := NewRecorder("r", 1, []string{"tick", "tick"}); err == nil {
		t.Error("expected error for duplicate probe")
	}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	ctx := context.Background()
	if err := sink.WriteHeader([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteHeader([]string{"ignored"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteRow(ctx, 1, []float64{1.5, 2}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteRow(ctx, 2, []float64{3, 0.25}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{{"tick", "a", "b"}, {"1", "1.5", "2"}, {"2", "3", "0.25"}}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i := range want {
		if strings.Join(records[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("record %d = %v, want %v", i, records[i], want[i])
		}
	}
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = sink.WriteHeader([]string{"x", "y"})
	if err := sink.WriteRow(ctx, 3, []float64{1, math.NaN()}); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteRow(ctx, 4, []float64{1}); err == nil {
		t.Error("expected error on short row")
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &row); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if row["tick"] != float64(3) || row["x"] != float64(1) || row["y"] != nil {
		t.Errorf("row = %v", row)
	}
}

func TestArrowSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.arrow")
	sink := NewArrowSink(path)
	ctx := context.Background()
	if err := sink.WriteHeader([]string{"entities", "pi_estimate"}); err != nil {
		t.Fatal(err)
	}
	for tick := int64(1); tick <= 3; tick++ {
		if err := sink.WriteRow(ctx, tick, []float64{float64(tick * 10), 3.1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	table, err := ReadArrow(path)
	if err != nil {
		t.Fatalf("ReadArrow: %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "entities" {
		t.Errorf("columns = %v", table.Columns)
	}
	if len(table.Ticks) != 3 || table.Ticks[2] != 3 {
		t.Errorf("ticks = %v", table.Ticks)
	}
	ent := table.Column("entities")
	if len(ent) != 3 || ent[0] != 10 || ent[2] != 30 {
		t.Errorf("entities = %v", ent)
	}
	if table.Column("missing") != nil {
		t.Error("unknown column should be nil")
	}
}

func TestArrowSink_NoHeaderWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.arrow")
	if err := NewArrowSink(path).Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no file")
	}
}

func TestStoreSink(t *testing.T) {
	ctx := context.Background()
	rs := store.NewInMemoryRunStore()
	if err := rs.CreateRun(ctx, store.Run{ID: "r1", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	sink := NewStoreSink(rs, "r1")
	_ = sink.WriteHeader([]string{"entities"})
	if err := sink.WriteRow(ctx, 7, []float64{12}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	points, err := rs.Metrics(ctx, "r1", "entities")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].Tick != 7 || points[0].Value != 12 {
		t.Errorf("points = %v", points)
	}

	missing := NewStoreSink(rs, "nope")
	_ = missing.WriteHeader([]string{"entities"})
	if err := missing.WriteRow(ctx, 1, []float64{1}); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestShellObserver(t *testing.T) {
	ctx := context.Background()
	obs := NewShellObserver()
	s := substrate.NewState()
	prev := s.Spawn(nil, nil)

	for tick := int64(1); tick <= 3; tick++ {
		next := s.Spawn(nil, nil)
		_ = s.Graph.AddEdge(prev.ID, next.ID)
		prev = next
		s.Tick = tick
		if err := obs.AfterTick(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	sum := obs.Summary()
	if sum["horizon_final"] != 3 || sum["horizon_growth_ticks"] != 2 || sum["horizon_monotonic"] != 1 {
		t.Errorf("summary = %v", sum)
	}

	// Cut the chain: radius shrinks.
	s.Graph.RemoveEdge(0, 1)
	if err := obs.AfterTick(ctx, s); err != nil {
		t.Fatal(err)
	}
	if obs.Summary()["horizon_monotonic"] != 0 {
		t.Error("expected non-monotonic after shrink")
	}
	if got := obs.Radii(); len(got) != 4 || got[3] != 0 {
		t.Errorf("radii = %v", got)
	}
}

func TestPiDriftObserver_Lattice(t *testing.T) {
	obs := NewPiDriftObserver(3)
	s := lattice(t, 5)
	for i := 0; i < 5; i++ {
		if err := obs.AfterTick(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
	// Shells around the centre: 1, 4, 8, 8, 4.
	want := (2 + 2 + 8.0/6.0 + 0.5) / 4
	sum := obs.Summary()
	if math.Abs(sum["pi_shell_mean"]-want) > 1e-9 {
		t.Errorf("pi_shell_mean = %f, want %f", sum["pi_shell_mean"], want)
	}
	if math.Abs(sum["pi_shell_drift"]-(want-math.Pi)) > 1e-9 {
		t.Errorf("pi_shell_drift = %f", sum["pi_shell_drift"])
	}
	if sum["pi_shell_stddev"] > 1e-12 {
		t.Errorf("constant estimates should have zero stddev, got %f", sum["pi_shell_stddev"])
	}
	if len(obs.Estimates()) != 5 {
		t.Errorf("estimates = %d, want 5", len(obs.Estimates()))
	}
}

func TestPiDriftObserver_NoShells(t *testing.T) {
	obs := NewPiDriftObserver(0)
	s := substrate.NewState()
	s.Spawn(nil, nil)
	if err := obs.AfterTick(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(obs.Summary()) != 0 {
		t.Errorf("expected empty summary, got %v", obs.Summary())
	}
}

func TestCentralityObserver(t *testing.T) {
	s := substrate.NewState()
	hub := s.Spawn(nil, nil)
	for i := 0; i < 5; i++ {
		leaf := s.Spawn(nil, nil)
		_ = s.Graph.AddEdge(hub.ID, leaf.ID)
	}
	obs := NewCentralityObserver(2)

	s.Tick = 1
	if err := obs.AfterTick(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := obs.Hub(); ok {
		t.Error("tick 1 should be skipped with every=2")
	}

	s.Tick = 2
	if err := obs.AfterTick(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	id, score, ok := obs.Hub()
	if !ok || id != hub.ID || score <= 1 {
		t.Errorf("Hub() = %d, %f, %v", id, score, ok)
	}
	if obs.Summary()["hub_score_peak"] != score {
		t.Errorf("peak = %f, want %f", obs.Summary()["hub_score_peak"], score)
	}
}

func TestEventObserver(t *testing.T) {
	dir := t.TempDir()
	obs := NewEventObserver(logging.NewEventLogger(dir, "debug"))
	s := substrate.NewState()
	s.Spawn(nil, nil)
	ctx := context.Background()
	for tick := int64(1); tick <= 2; tick++ {
		_ = obs.BeforeTick(ctx, s)
		s.Tick = tick
		if err := obs.AfterTick(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := obs.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logging.EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
}

func TestEventObserver_NilLogger(t *testing.T) {
	obs := NewEventObserver(nil)
	s := substrate.NewState()
	if err := obs.AfterTick(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if err := obs.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSummariesAndCloseAll(t *testing.T) {
	sink := &memSink{}
	rec, _ := NewRecorder("r", 1, []string{"entities"}, sink)
	shell := NewShellObserver()
	s := substrate.NewState()
	s.Spawn(nil, nil)
	s.Tick = 1
	ctx := context.Background()
	observers := []Observer{rec, shell}
	for _, o := range observers {
		if err := o.AfterTick(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	sum := Summaries(observers)
	if sum["entities"] != 1 {
		t.Errorf("entities = %f", sum["entities"])
	}
	if _, ok := sum["horizon_monotonic"]; !ok {
		t.Error("shell summary missing")
	}
	if err := CloseAll(observers); err != nil {
		t.Fatal(err)
	}
	if !sink.closed {
		t.Error("recorder sinks not closed")
	}
}

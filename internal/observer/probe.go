package observer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/tickframe/internal/ranking"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// ErrUnknownProbe is returned for probe names that are not registered.
var ErrUnknownProbe = errors.New("unknown probe")

// Probe computes one scalar metric from a state. Undefined values are
// reported as 0 rather than NaN.
type Probe func(ctx context.Context, s *substrate.State) (float64, error)

var probes = map[string]Probe{
	"tick":           probeTick,
	"entities":       probeEntities,
	"edges":          probeEdges,
	"mean_degree":    probeMeanDegree,
	"degree_stddev":  probeDegreeStdDev,
	"components":     probeComponents,
	"horizon_radius": probeHorizonRadius,
	"pi_estimate":    probePiEstimate,
	"gamma_total":    probeGammaTotal,
	"gamma_max":      probeGammaMax,
	"gamma_support":  probeGammaSupport,
	"hub_score":      probeHubScore,
	"mean_radius":    probeMeanRadius,
}

var probeDescriptions = map[string]string{
	"tick":           "current tick counter",
	"entities":       "number of entities",
	"edges":          "number of graph edges",
	"mean_degree":    "mean node degree",
	"degree_stddev":  "population standard deviation of node degree",
	"components":     "number of connected components",
	"horizon_radius": "hop distance from the origin entity to the farthest reachable node",
	"pi_estimate":    "entities inside the inscribed circle around the origin divided by R^2",
	"gamma_total":    "sum of canvas deviation from background",
	"gamma_max":      "largest canvas value",
	"gamma_support":  "number of stored canvas cells",
	"hub_score":      "largest PageRank score relative to uniform",
	"mean_radius":    "mean Euclidean distance of positioned entities from the origin",
}

// ProbeNames returns the registered probe names, sorted.
func ProbeNames() []string {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DescribeProbe returns a one-line description of a probe.
func DescribeProbe(name string) string {
	return probeDescriptions[name]
}

// LookupProbe returns the probe registered under name.
func LookupProbe(name string) (Probe, error) {
	p, ok := probes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProbe, name)
	}
	return p, nil
}

func probeTick(_ context.Context, s *substrate.State) (float64, error) {
	return float64(s.Tick), nil
}

func probeEntities(_ context.Context, s *substrate.State) (float64, error) {
	return float64(s.Len()), nil
}

func probeEdges(_ context.Context, s *substrate.State) (float64, error) {
	return float64(s.Graph.EdgeCount()), nil
}

func probeMeanDegree(_ context.Context, s *substrate.State) (float64, error) {
	degrees := substrate.DegreeSequence(s.Graph)
	if len(degrees) == 0 {
		return 0, nil
	}
	return stat.Mean(degrees, nil), nil
}

func probeDegreeStdDev(_ context.Context, s *substrate.State) (float64, error) {
	degrees := substrate.DegreeSequence(s.Graph)
	if len(degrees) < 2 {
		return 0, nil
	}
	return stat.PopStdDev(degrees, nil), nil
}

func probeComponents(_ context.Context, s *substrate.State) (float64, error) {
	return float64(substrate.Components(s.Graph)), nil
}

func probeHorizonRadius(_ context.Context, s *substrate.State) (float64, error) {
	origin, ok := s.Origin()
	if !ok {
		return 0, nil
	}
	return float64(substrate.HorizonRadius(s.Graph, origin)), nil
}

// originPosition returns the position of the origin entity, or the zero
// vector when it has none.
func originPosition(s *substrate.State) substrate.Vec3 {
	origin, ok := s.Origin()
	if !ok {
		return substrate.Vec3{}
	}
	if p := s.Entity(origin).Position; p != nil {
		return *p
	}
	return substrate.Vec3{}
}

// PiEstimate counts positioned entities within R of the origin in the XY
// plane and divides by R^2, where R is the smaller of the largest |dx| and
// |dy|. It returns 0 when R < 1.
func PiEstimate(s *substrate.State) float64 {
	center := originPosition(s)
	var dxs, dys []float64
	var dists []float64
	for _, id := range s.IDs() {
		e := s.Entity(id)
		if e.Position == nil {
			continue
		}
		d := e.Position.Sub(center)
		dxs = append(dxs, math.Abs(d.X))
		dys = append(dys, math.Abs(d.Y))
		dists = append(dists, math.Hypot(d.X, d.Y))
	}
	if len(dists) == 0 {
		return 0
	}
	r := math.Min(floats.Max(dxs), floats.Max(dys))
	if r < 1 {
		return 0
	}
	inside := 0
	for _, d := range dists {
		if d <= r+1e-9 {
			inside++
		}
	}
	return float64(inside) / (r * r)
}

func probePiEstimate(_ context.Context, s *substrate.State) (float64, error) {
	return PiEstimate(s), nil
}

func probeGammaTotal(_ context.Context, s *substrate.State) (float64, error) {
	if s.Canvas == nil {
		return 0, nil
	}
	return s.Canvas.Sum(), nil
}

func probeGammaMax(_ context.Context, s *substrate.State) (float64, error) {
	if s.Canvas == nil {
		return 0, nil
	}
	return s.Canvas.Max(), nil
}

func probeGammaSupport(_ context.Context, s *substrate.State) (float64, error) {
	if s.Canvas == nil {
		return 0, nil
	}
	return float64(s.Canvas.Len()), nil
}

func probeHubScore(ctx context.Context, s *substrate.State) (float64, error) {
	scores, err := ranking.ComputePageRank(ctx, s.Graph, ranking.DefaultPageRankConfig())
	if err != nil {
		return 0, fmt.Errorf("pagerank: %w", err)
	}
	_, rel, ok := ranking.Top(scores)
	if !ok {
		return 0, nil
	}
	return rel, nil
}

func probeMeanRadius(_ context.Context, s *substrate.State) (float64, error) {
	center := originPosition(s)
	var dists []float64
	for _, id := range s.IDs() {
		if p := s.Entity(id).Position; p != nil {
			dists = append(dists, p.Dist(center))
		}
	}
	if len(dists) == 0 {
		return 0, nil
	}
	return stat.Mean(dists, nil), nil
}

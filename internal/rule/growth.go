package rule

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/tickframe/internal/substrate"
)

var growthInfo = Info{
	Name:        "growth",
	Description: "Graph growth: births linked to parents, edge decay with rewiring, degree-preferential bias",
	Params: []string{
		"birth_rate", "link_rate", "edge_decay", "rewire_rate",
		"bias_edges", "bias_asymmetry", "bias_axis", "dims", "max_entities",
	},
}

// GrowthConfig holds the parameters of the growth rule.
type GrowthConfig struct {
	// BirthRate is the per-entity probability of spawning a child each tick.
	BirthRate float64
	// LinkRate is the probability a child also links to one of its parent's neighbours.
	LinkRate float64
	// EdgeDecay is the per-edge probability of removal each tick.
	EdgeDecay float64
	// RewireRate is the probability a decayed edge is reattached to a random node.
	RewireRate float64
	// BiasEdges is the number of preferential edges added per tick.
	BiasEdges int
	// BiasAsymmetry in [-1, 1] skews bias sources toward x > BiasAxis (positive)
	// or x < BiasAxis (negative).
	BiasAsymmetry float64
	BiasAxis      float64
	// Dims is 2 (planar jitter) or 3.
	Dims int
	// MaxEntities caps births.
	MaxEntities int
}

// DefaultGrowthConfig returns the default growth parameters.
func DefaultGrowthConfig() GrowthConfig {
	return GrowthConfig{
		BirthRate:   0.1,
		LinkRate:    0.3,
		EdgeDecay:   0.01,
		RewireRate:  0.5,
		BiasEdges:   1,
		Dims:        2,
		MaxEntities: 5000,
	}
}

// Growth is the graph-growth update rule.
type Growth struct {
	cfg GrowthConfig
	rng *rand.Rand
}

// NewGrowth creates a growth rule.
func NewGrowth(cfg GrowthConfig, rng *rand.Rand) (*Growth, error) {
	for _, rate := range []struct {
		name string
		v    float64
	}{
		{"birth_rate", cfg.BirthRate},
		{"link_rate", cfg.LinkRate},
		{"edge_decay", cfg.EdgeDecay},
		{"rewire_rate", cfg.RewireRate},
	} {
		if rate.v < 0 || rate.v > 1 {
			return nil, fmt.Errorf("%s must be in [0, 1], got %f", rate.name, rate.v)
		}
	}
	if cfg.BiasAsymmetry < -1 || cfg.BiasAsymmetry > 1 {
		return nil, fmt.Errorf("bias_asymmetry must be in [-1, 1], got %f", cfg.BiasAsymmetry)
	}
	if cfg.Dims != 2 && cfg.Dims != 3 {
		return nil, fmt.Errorf("dims must be 2 or 3, got %d", cfg.Dims)
	}
	if cfg.BiasEdges < 0 || cfg.MaxEntities < 0 {
		return nil, fmt.Errorf("bias_edges and max_entities must be non-negative")
	}
	return &Growth{cfg: cfg, rng: rng}, nil
}

func newGrowth(p substrate.Params, rng *rand.Rand) (UpdateRule, error) {
	def := DefaultGrowthConfig()
	return NewGrowth(GrowthConfig{
		BirthRate:     p.Float("birth_rate", def.BirthRate),
		LinkRate:      p.Float("link_rate", def.LinkRate),
		EdgeDecay:     p.Float("edge_decay", def.EdgeDecay),
		RewireRate:    p.Float("rewire_rate", def.RewireRate),
		BiasEdges:     p.Int("bias_edges", def.BiasEdges),
		BiasAsymmetry: p.Float("bias_asymmetry", def.BiasAsymmetry),
		BiasAxis:      p.Float("bias_axis", def.BiasAxis),
		Dims:          p.Int("dims", def.Dims),
		MaxEntities:   p.Int("max_entities", def.MaxEntities),
	}, rng)
}

func (g *Growth) Name() string { return "growth" }

// Expand gives every entity alive at the start of the tick one chance to spawn.
func (g *Growth) Expand(s *substrate.State) (*substrate.State, error) {
	for _, id := range s.IDs() {
		if g.cfg.MaxEntities > 0 && s.Len() >= g.cfg.MaxEntities {
			break
		}
		if g.rng.Float64() >= g.cfg.BirthRate {
			continue
		}
		parent := s.Entity(id)
		var pos *substrate.Vec3
		if parent.Position != nil {
			p := parent.Position.Add(g.unitJitter())
			pos = &p
		}
		child := s.Spawn(nil, pos)
		if err := s.Graph.AddEdge(id, child.ID); err != nil {
			return nil, err
		}
		if g.rng.Float64() < g.cfg.LinkRate {
			nbrs := s.Graph.Neighbors(id)
			other := nbrs[g.rng.IntN(len(nbrs))]
			if other != child.ID {
				if err := s.Graph.AddEdge(child.ID, other); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

// Mutate removes edges at EdgeDecay and rewires a fraction of them.
func (g *Growth) Mutate(s *substrate.State) (*substrate.State, error) {
	if g.cfg.EdgeDecay == 0 {
		return s, nil
	}
	ids := s.IDs()
	for _, e := range s.Graph.Edges() {
		if g.rng.Float64() >= g.cfg.EdgeDecay {
			continue
		}
		s.Graph.RemoveEdge(e.A, e.B)
		if g.rng.Float64() >= g.cfg.RewireRate || len(ids) < 3 {
			continue
		}
		target := ids[g.rng.IntN(len(ids))]
		if target == e.A || s.Graph.HasEdge(e.A, target) {
			continue
		}
		if err := s.Graph.AddEdge(e.A, target); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Bias adds BiasEdges links whose targets are drawn proportionally to degree+1.
func (g *Growth) Bias(s *substrate.State) (*substrate.State, error) {
	if g.cfg.BiasEdges == 0 || s.Len() < 2 {
		return s, nil
	}
	ids := s.IDs()
	weights := make([]float64, len(ids))
	total := 0.0
	for i, id := range ids {
		weights[i] = float64(s.Graph.Degree(id) + 1)
		total += weights[i]
	}
	favoured := g.favouredSources(s, ids)

	for k := 0; k < g.cfg.BiasEdges; k++ {
		var src substrate.EntityID
		if len(favoured) > 0 && g.rng.Float64() < math.Abs(g.cfg.BiasAsymmetry) {
			src = favoured[g.rng.IntN(len(favoured))]
		} else {
			src = ids[g.rng.IntN(len(ids))]
		}
		dst := ids[pickWeighted(g.rng, weights, total)]
		if dst == src {
			continue
		}
		if err := s.Graph.AddEdge(src, dst); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// favouredSources returns the entities on the favoured side of the bias axis.
func (g *Growth) favouredSources(s *substrate.State, ids []substrate.EntityID) []substrate.EntityID {
	if g.cfg.BiasAsymmetry == 0 {
		return nil
	}
	var out []substrate.EntityID
	for _, id := range ids {
		pos := s.Entity(id).Position
		if pos == nil {
			continue
		}
		if (g.cfg.BiasAsymmetry > 0 && pos.X > g.cfg.BiasAxis) ||
			(g.cfg.BiasAsymmetry < 0 && pos.X < g.cfg.BiasAxis) {
			out = append(out, id)
		}
	}
	return out
}

// unitJitter returns a random unit vector, planar when Dims is 2.
func (g *Growth) unitJitter() substrate.Vec3 {
	if g.cfg.Dims == 2 {
		theta := g.rng.Float64() * 2 * math.Pi
		return substrate.Vec3{X: math.Cos(theta), Y: math.Sin(theta)}
	}
	for {
		v := substrate.Vec3{X: g.rng.NormFloat64(), Y: g.rng.NormFloat64(), Z: g.rng.NormFloat64()}
		if n := v.Norm(); n > 1e-12 {
			return v.Scale(1 / n)
		}
	}
}

// pickWeighted returns an index drawn proportionally to weights.
func pickWeighted(rng *rand.Rand, weights []float64, total float64) int {
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

package rule

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/tickframe/internal/field"
	"github.com/nvandessel/tickframe/internal/substrate"
)

var gammaInfo = Info{
	Name:        "gamma",
	Description: "Gamma field: entities paint presence, the canvas decays and diffuses, entities drift up the gradient with jitter and bind on contact",
	Params: []string{
		"paint_amplitude", "paint_radius", "decay_rate", "diffusion",
		"drift", "jitter", "max_step", "bind_range", "dims",
	},
}

// GammaConfig holds the parameters of the gamma-field rule.
type GammaConfig struct {
	PaintAmplitude float64
	PaintRadius    int
	DecayRate      float64
	Diffusion      float64
	// Drift scales the gradient term of the per-tick displacement.
	Drift float64
	// Jitter is the standard deviation of the random displacement per axis.
	Jitter float64
	// MaxStep clamps the displacement length per tick.
	MaxStep float64
	// BindRange is the distance beyond which existing links break.
	BindRange float64
	Dims      int
}

// DefaultGammaConfig returns the default gamma-field parameters.
func DefaultGammaConfig() GammaConfig {
	return GammaConfig{
		PaintAmplitude: 1.0,
		PaintRadius:    2,
		DecayRate:      0.05,
		Diffusion:      0.1,
		Drift:          0.5,
		Jitter:         0.2,
		MaxStep:        1.0,
		BindRange:      2.0,
		Dims:           2,
	}
}

// Gamma is the gamma-field update rule. It requires positioned entities;
// entities without a position neither paint nor move.
type Gamma struct {
	cfg GammaConfig
	rng *rand.Rand
}

// NewGamma creates a gamma-field rule.
func NewGamma(cfg GammaConfig, rng *rand.Rand) (*Gamma, error) {
	if cfg.DecayRate < 0 || cfg.DecayRate > 1 {
		return nil, fmt.Errorf("decay_rate must be in [0, 1], got %f", cfg.DecayRate)
	}
	if cfg.Diffusion < 0 || cfg.Diffusion > 1 {
		return nil, fmt.Errorf("diffusion must be in [0, 1], got %f", cfg.Diffusion)
	}
	if cfg.PaintRadius < 0 {
		return nil, fmt.Errorf("paint_radius must be non-negative, got %d", cfg.PaintRadius)
	}
	if cfg.MaxStep <= 0 {
		return nil, fmt.Errorf("max_step must be positive, got %f", cfg.MaxStep)
	}
	if cfg.Dims != 2 && cfg.Dims != 3 {
		return nil, fmt.Errorf("dims must be 2 or 3, got %d", cfg.Dims)
	}
	return &Gamma{cfg: cfg, rng: rng}, nil
}

func newGamma(p substrate.Params, rng *rand.Rand) (UpdateRule, error) {
	def := DefaultGammaConfig()
	return NewGamma(GammaConfig{
		PaintAmplitude: p.Float("paint_amplitude", def.PaintAmplitude),
		PaintRadius:    p.Int("paint_radius", def.PaintRadius),
		DecayRate:      p.Float("decay_rate", def.DecayRate),
		Diffusion:      p.Float("diffusion", def.Diffusion),
		Drift:          p.Float("drift", def.Drift),
		Jitter:         p.Float("jitter", def.Jitter),
		MaxStep:        p.Float("max_step", def.MaxStep),
		BindRange:      p.Float("bind_range", def.BindRange),
		Dims:           p.Int("dims", def.Dims),
	}, rng)
}

func (g *Gamma) Name() string { return "gamma" }

// Expand paints each entity's presence onto the canvas, creating it if needed.
func (g *Gamma) Expand(s *substrate.State) (*substrate.State, error) {
	if s.Canvas == nil {
		if g.cfg.Dims == 2 {
			s.Canvas = field.NewPlanar(0)
		} else {
			s.Canvas = field.New(0)
		}
	}
	for _, id := range s.IDs() {
		e := s.Entity(id)
		if e.Position == nil {
			continue
		}
		s.Canvas.Paint(e.Position.Coord(), g.cfg.PaintAmplitude, g.cfg.PaintRadius)
	}
	return s, nil
}

// Mutate decays and diffuses the canvas.
func (g *Gamma) Mutate(s *substrate.State) (*substrate.State, error) {
	if s.Canvas == nil {
		return s, nil
	}
	s.Canvas.Decay(g.cfg.DecayRate)
	s.Canvas.Diffuse(g.cfg.Diffusion)
	return s, nil
}

// Bias moves entities along the gradient with jitter, then updates bonds.
func (g *Gamma) Bias(s *substrate.State) (*substrate.State, error) {
	ids := s.IDs()
	for _, id := range ids {
		e := s.Entity(id)
		if e.Position == nil {
			continue
		}
		var grad [3]float64
		if s.Canvas != nil {
			grad = s.Canvas.Gradient(e.Position.Coord())
		}
		step := substrate.Vec3{
			X: g.cfg.Drift*grad[0] + g.cfg.Jitter*g.rng.NormFloat64(),
			Y: g.cfg.Drift*grad[1] + g.cfg.Jitter*g.rng.NormFloat64(),
		}
		if g.cfg.Dims == 3 {
			step.Z = g.cfg.Drift*grad[2] + g.cfg.Jitter*g.rng.NormFloat64()
		}
		if n := step.Norm(); n > g.cfg.MaxStep {
			step = step.Scale(g.cfg.MaxStep / n)
		}
		p := e.Position.Add(step)
		e.Position = &p
	}

	for _, edge := range s.Graph.Edges() {
		a, b := s.Entity(edge.A), s.Entity(edge.B)
		if a == nil || b == nil || a.Position == nil || b.Position == nil {
			continue
		}
		if a.Position.Dist(*b.Position) > g.cfg.BindRange {
			s.Graph.RemoveEdge(edge.A, edge.B)
		}
	}
	for i := 0; i < len(ids); i++ {
		a := s.Entity(ids[i])
		if a.Position == nil {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			b := s.Entity(ids[j])
			if b.Position == nil {
				continue
			}
			if a.Position.Dist(*b.Position) <= 1 {
				if err := s.Graph.AddEdge(a.ID, b.ID); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

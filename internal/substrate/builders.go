package substrate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// ErrUnknownBuilder is returned by Build for an unregistered kind.
var ErrUnknownBuilder = errors.New("unknown initial-state builder")

// Builder constructs an initial state from parameters.
type Builder func(p Params, rng *rand.Rand) (*State, error)

type builderEntry struct {
	build  Builder
	params []string
}

var builders = map[string]builderEntry{
	"seed":    {build: buildSeed},
	"ring":    {build: buildRing, params: []string{"n", "radius", "hub"}},
	"lattice": {build: buildLattice, params: []string{"size", "dims"}},
	"random":  {build: buildRandom, params: []string{"n", "side", "p", "dims"}},
}

// BuilderNames returns the registered builder kinds, sorted.
func BuilderNames() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build runs the named builder. An empty kind selects "seed".
func Build(kind string, p Params, rng *rand.Rand) (*State, error) {
	if kind == "" {
		kind = "seed"
	}
	entry, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownBuilder, kind, BuilderNames())
	}
	if err := p.Validate(entry.params); err != nil {
		return nil, fmt.Errorf("builder %s: %w", kind, err)
	}
	return entry.build(p, rng)
}

func buildSeed(_ Params, _ *rand.Rand) (*State, error) {
	s := NewState()
	s.Spawn(nil, &Vec3{})
	return s, nil
}

// buildRing places n entities on a circle, each linked to its two
// neighbours. The first ring entity is the origin. With hub: 1 an extra
// centre entity linked to every ring entity is spawned first and becomes
// the origin instead.
func buildRing(p Params, _ *rand.Rand) (*State, error) {
	n := p.Int("n", 12)
	radius := p.Float("radius", float64(n)/(2*math.Pi))
	hub := p.Int("hub", 0)
	if n < 3 {
		return nil, fmt.Errorf("ring needs n >= 3, got %d", n)
	}
	if hub != 0 && hub != 1 {
		return nil, fmt.Errorf("ring hub must be 0 or 1, got %d", hub)
	}
	s := NewState()
	var centre *Entity
	if hub == 1 {
		centre = s.Spawn(nil, &Vec3{})
	}
	ids := make([]EntityID, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ids[i] = s.Spawn(nil, &Vec3{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}).ID
		if centre != nil {
			if err := s.Graph.AddEdge(centre.ID, ids[i]); err != nil {
				return nil, err
			}
		}
	}
	for i := 0; i < n; i++ {
		if err := s.Graph.AddEdge(ids[i], ids[(i+1)%n]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func buildLattice(p Params, _ *rand.Rand) (*State, error) {
	size := p.Int("size", 5)
	dims := p.Int("dims", 2)
	if size < 1 {
		return nil, fmt.Errorf("lattice size must be positive, got %d", size)
	}
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("lattice dims must be 2 or 3, got %d", dims)
	}
	zSize := 1
	if dims == 3 {
		zSize = size
	}
	half := size / 2
	s := NewState()
	index := make(map[[3]int]EntityID, size*size*zSize)

	// Spawn the centre cell first so it becomes the origin.
	centre := [3]int{0, 0, 0}
	index[centre] = s.Spawn(nil, &Vec3{}).ID
	for x := -half; x < size-half; x++ {
		for y := -half; y < size-half; y++ {
			zHalf := 0
			if dims == 3 {
				zHalf = half
			}
			for z := -zHalf; z < zSize-zHalf; z++ {
				key := [3]int{x, y, z}
				if key == centre {
					continue
				}
				pos := Vec3{X: float64(x), Y: float64(y), Z: float64(z)}
				index[key] = s.Spawn(nil, &pos).ID
			}
		}
	}
	for key, id := range index {
		for _, d := range [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
			nb := [3]int{key[0] + d[0], key[1] + d[1], key[2] + d[2]}
			if other, ok := index[nb]; ok {
				if err := s.Graph.AddEdge(id, other); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

func buildRandom(p Params, rng *rand.Rand) (*State, error) {
	n := p.Int("n", 50)
	side := p.Float("side", 10)
	prob := p.Float("p", 0.05)
	dims := p.Int("dims", 3)
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("random dims must be 2 or 3, got %d", dims)
	}
	if n < 1 {
		return nil, fmt.Errorf("random needs n >= 1, got %d", n)
	}
	if prob < 0 || prob > 1 {
		return nil, fmt.Errorf("random edge probability must be in [0, 1], got %f", prob)
	}
	s := NewState()
	for i := 0; i < n; i++ {
		pos := Vec3{
			X: (rng.Float64() - 0.5) * side,
			Y: (rng.Float64() - 0.5) * side,
			Z: (rng.Float64() - 0.5) * side,
		}
		if dims == 2 {
			pos.Z = 0
		}
		s.Spawn(nil, &pos)
	}
	ids := s.IDs()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if rng.Float64() < prob {
				if err := s.Graph.AddEdge(ids[i], ids[j]); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

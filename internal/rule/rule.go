// Package rule defines the three-phase update rule that advances a substrate
// by one tick, and a registry of built-in rules selectable by name.
package rule

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// ErrUnknownRule is returned by New for an unregistered rule name.
var ErrUnknownRule = errors.New("unknown update rule")

// UpdateRule transforms a substrate in three phases. Each phase may mutate
// the given state in place and return it, or return a new state.
type UpdateRule interface {
	Name() string
	// Expand grows the substrate (births, new links).
	Expand(s *substrate.State) (*substrate.State, error)
	// Mutate applies decay and rewiring.
	Mutate(s *substrate.State) (*substrate.State, error)
	// Bias applies preferential or asymmetric changes.
	Bias(s *substrate.State) (*substrate.State, error)
}

// Step applies Expand, Mutate and Bias in that order and increments the tick.
func Step(r UpdateRule, s *substrate.State) (*substrate.State, error) {
	if s == nil {
		return nil, fmt.Errorf("%s: nil state", r.Name())
	}
	tick := s.Tick
	phases := []struct {
		name string
		fn   func(*substrate.State) (*substrate.State, error)
	}{
		{"expand", r.Expand},
		{"mutate", r.Mutate},
		{"bias", r.Bias},
	}
	for _, ph := range phases {
		next, err := ph.fn(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %s at tick %d: %w", r.Name(), ph.name, tick, err)
		}
		if next == nil {
			return nil, fmt.Errorf("%s: %s returned nil state at tick %d", r.Name(), ph.name, tick)
		}
		s = next
	}
	s.Tick = tick + 1
	return s, nil
}

// Factory builds a rule from parameters and a seeded random source.
type Factory func(p substrate.Params, rng *rand.Rand) (UpdateRule, error)

// Info describes a registered rule.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

type entry struct {
	info    Info
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]entry)
)

// Register adds a rule factory under info.Name, replacing any previous one.
func Register(info Info, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Name] = entry{info: info, factory: f}
}

// New builds the named rule. Parameters not listed in the rule's Info are rejected.
func New(name string, p substrate.Params, rng *rand.Rand) (UpdateRule, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownRule, name, Names())
	}
	if err := p.Validate(e.info.Params); err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return e.factory(p, rng)
}

// Names returns the registered rule names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns Info for every registered rule, sorted by name.
func Describe() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()
	infos := make([]Info, 0, len(registry))
	for _, e := range registry {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Noop leaves the substrate unchanged apart from the tick counter.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Expand(s *substrate.State) (*substrate.State, error) { return s, nil }

func (Noop) Mutate(s *substrate.State) (*substrate.State, error) { return s, nil }

func (Noop) Bias(s *substrate.State) (*substrate.State, error) { return s, nil }

func init() {
	Register(Info{Name: "noop", Description: "Advance the tick without changing the substrate"},
		func(substrate.Params, *rand.Rand) (UpdateRule, error) { return Noop{}, nil })
	Register(growthInfo, newGrowth)
	Register(gammaInfo, newGamma)
}

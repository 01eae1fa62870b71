package substrate

import (
	"fmt"
	"math"
	"sort"
)

// Params holds named numeric parameters for builders and update rules.
// A nil Params is valid and yields defaults for every lookup.
type Params map[string]float64

// Float returns the named parameter, or def when unset.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Int returns the named parameter rounded to the nearest integer, or def.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(math.Round(v))
	}
	return def
}

// Validate rejects parameter names not listed in known.
func (p Params) Validate(known []string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var unknown []string
	for k := range p {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown parameters %v (known: %v)", unknown, known)
	}
	return nil
}

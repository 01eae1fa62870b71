// Package visualization renders substrate graphs in various output formats.
package visualization

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown graph format %q (valid: dot, json)", s)
	}
}

// shellColors colours nodes by hop distance from the origin. Shells past
// the end of the palette reuse the last colour.
var shellColors = []string{
	"tomato",
	"goldenrod",
	"mediumseagreen",
	"steelblue",
	"slateblue",
	"orchid",
	"lightgray",
}

// unreachableColor marks nodes in a different component from the origin.
const unreachableColor = "white"

// Options controls DOT rendering.
type Options struct {
	// Name is the graph identifier. Default: "tickframe".
	Name string

	// Positions emits pinned pos attributes for entities that have a
	// position, and selects the neato layout.
	Positions bool

	// Scale multiplies positions before they are written. Default: 1.
	Scale float64
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "tickframe"
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	return o
}

// ShellIndex maps every node reachable from the state's origin to its hop
// distance. Unreachable nodes are absent.
func ShellIndex(s *substrate.State) map[substrate.EntityID]int {
	index := make(map[substrate.EntityID]int)
	origin, ok := s.Origin()
	if !ok {
		return index
	}
	for r, shell := range substrate.Shells(s.Graph, origin) {
		for _, id := range shell {
			index[id] = r
		}
	}
	return index
}

func shellColor(r int, reachable bool) string {
	if !reachable {
		return unreachableColor
	}
	if r >= len(shellColors) {
		return shellColors[len(shellColors)-1]
	}
	return shellColors[r]
}

// RenderDOT produces a Graphviz DOT representation of the substrate graph.
// Nodes are coloured by shell distance from the origin.
func RenderDOT(s *substrate.State, opts Options) string {
	opts = opts.withDefaults()
	shells := ShellIndex(s)

	var b strings.Builder
	fmt.Fprintf(&b, "graph %q {\n", opts.Name)
	if opts.Positions {
		b.WriteString("  layout=neato;\n")
	}
	fmt.Fprintf(&b, "  label=\"tick %d\";\n", s.Tick)
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, id := range s.IDs() {
		r, reachable := shells[id]
		attrs := []string{
			fmt.Sprintf("label=\"%d\"", id),
			fmt.Sprintf("fillcolor=%q", shellColor(r, reachable)),
			fmt.Sprintf("tooltip=\"shell=%s degree=%d\"", shellLabel(r, reachable), s.Graph.Degree(id)),
		}
		if e := s.Entity(id); opts.Positions && e.Position != nil {
			p := e.Position.Scale(opts.Scale)
			attrs = append(attrs, fmt.Sprintf("pos=\"%.3f,%.3f!\"", p.X, p.Y))
		}
		fmt.Fprintf(&b, "  \"%d\" [%s];\n", id, strings.Join(attrs, ", "))
	}
	b.WriteString("\n")

	for _, e := range s.Graph.Edges() {
		fmt.Fprintf(&b, "  \"%d\" -- \"%d\";\n", e.A, e.B)
	}

	b.WriteString("}\n")
	return b.String()
}

func shellLabel(r int, reachable bool) string {
	if !reachable {
		return "-"
	}
	return fmt.Sprintf("%d", r)
}

// RenderJSON produces a JSON graph representation with nodes and edges arrays.
// A gamma canvas, when present, is included as its stored cells plus, when
// its bounding box fits within field.MaxDenseCells, a dense X-major block.
func RenderJSON(s *substrate.State) map[string]interface{} {
	shells := ShellIndex(s)

	jsonNodes := make([]map[string]interface{}, 0, s.Len())
	for _, id := range s.IDs() {
		e := s.Entity(id)
		entry := map[string]interface{}{
			"id":      id,
			"degree":  s.Graph.Degree(id),
			"born_at": e.BornAt,
		}
		if r, ok := shells[id]; ok {
			entry["shell"] = r
		}
		if e.Position != nil {
			entry["position"] = []float64{e.Position.X, e.Position.Y, e.Position.Z}
		}
		if len(e.Attrs) > 0 {
			entry["attrs"] = e.Attrs
		}
		jsonNodes = append(jsonNodes, entry)
	}

	edges := s.Graph.Edges()
	jsonEdges := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		jsonEdges = append(jsonEdges, map[string]interface{}{
			"source": e.A,
			"target": e.B,
		})
	}

	out := map[string]interface{}{
		"tick":       s.Tick,
		"nodes":      jsonNodes,
		"edges":      jsonEdges,
		"node_count": len(jsonNodes),
		"edge_count": len(jsonEdges),
	}
	if s.Canvas != nil {
		canvas := map[string]interface{}{
			"background": s.Canvas.Background,
			"planar":     s.Canvas.Planar(),
			"cells":      s.Canvas.Cells(),
		}
		if min, max, ok := s.Canvas.Bounds(); ok {
			if values, err := s.Canvas.Dense(min, max); err == nil {
				canvas["dense"] = map[string]interface{}{
					"min":    min,
					"max":    max,
					"values": values,
				}
			}
		}
		out["canvas"] = canvas
	}
	return out
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

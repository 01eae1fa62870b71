package substrate

import (
	"fmt"
	"sort"
)

// Graph is an undirected simple graph over entity IDs, stored as adjacency sets.
type Graph struct {
	adj   map[EntityID]map[EntityID]struct{}
	edges int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[EntityID]map[EntityID]struct{})}
}

// AddNode adds id if it is not already present.
func (g *Graph) AddNode(id EntityID) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[EntityID]struct{})
	}
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id EntityID) bool {
	_, ok := g.adj[id]
	return ok
}

// RemoveNode removes id and every edge incident to it.
func (g *Graph) RemoveNode(id EntityID) {
	nbrs, ok := g.adj[id]
	if !ok {
		return
	}
	for n := range nbrs {
		delete(g.adj[n], id)
		g.edges--
	}
	delete(g.adj, id)
}

// AddEdge links a and b, adding missing endpoints. Adding an existing edge
// is a no-op. Self-loops are rejected.
func (g *Graph) AddEdge(a, b EntityID) error {
	if a == b {
		return fmt.Errorf("self-loop on entity %d", a)
	}
	g.AddNode(a)
	g.AddNode(b)
	if _, exists := g.adj[a][b]; exists {
		return nil
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
	g.edges++
	return nil
}

// RemoveEdge unlinks a and b. It reports whether an edge was removed.
func (g *Graph) RemoveEdge(a, b EntityID) bool {
	if _, ok := g.adj[a][b]; !ok {
		return false
	}
	delete(g.adj[a], b)
	delete(g.adj[b], a)
	g.edges--
	return true
}

// HasEdge reports whether a and b are linked.
func (g *Graph) HasEdge(a, b EntityID) bool {
	_, ok := g.adj[a][b]
	return ok
}

// Neighbors returns the neighbours of id in ascending order.
func (g *Graph) Neighbors(id EntityID) []EntityID {
	nbrs := g.adj[id]
	out := make([]EntityID, 0, len(nbrs))
	for n := range nbrs {
		out = append(out, n)
	}
	sortIDs(out)
	return out
}

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id EntityID) int {
	return len(g.adj[id])
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Nodes returns all node IDs in ascending order.
func (g *Graph) Nodes() []EntityID {
	out := make([]EntityID, 0, len(g.adj))
	for id := range g.adj {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Edge is an undirected edge with A < B.
type Edge struct {
	A EntityID `json:"a"`
	B EntityID `json:"b"`
}

// Edges returns every edge once, ordered by (A, B).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for a, nbrs := range g.adj {
		for b := range nbrs {
			if a < b {
				out = append(out, Edge{A: a, B: b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		adj:   make(map[EntityID]map[EntityID]struct{}, len(g.adj)),
		edges: g.edges,
	}
	for id, nbrs := range g.adj {
		cp := make(map[EntityID]struct{}, len(nbrs))
		for n := range nbrs {
			cp[n] = struct{}{}
		}
		out.adj[id] = cp
	}
	return out
}

func sortIDs(ids []EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

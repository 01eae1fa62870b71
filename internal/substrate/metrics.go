package substrate

// Shells returns the breadth-first layers of g around origin. Shell 0 holds
// origin alone; shell r holds every node at hop distance r. Each shell is
// sorted. An origin that is not in the graph yields nil.
func Shells(g *Graph, origin EntityID) [][]EntityID {
	if !g.HasNode(origin) {
		return nil
	}
	seen := map[EntityID]bool{origin: true}
	shells := [][]EntityID{{origin}}
	frontier := []EntityID{origin}
	for len(frontier) > 0 {
		var next []EntityID
		for _, id := range frontier {
			for _, n := range g.Neighbors(id) {
				if seen[n] {
					continue
				}
				seen[n] = true
				next = append(next, n)
			}
		}
		if len(next) == 0 {
			break
		}
		sortIDs(next)
		shells = append(shells, next)
		frontier = next
	}
	return shells
}

// HorizonRadius returns the hop distance of the farthest node reachable
// from origin, or 0 if origin is isolated or absent.
func HorizonRadius(g *Graph, origin EntityID) int {
	shells := Shells(g, origin)
	if len(shells) == 0 {
		return 0
	}
	return len(shells) - 1
}

// Components returns the number of connected components in g.
func Components(g *Graph) int {
	seen := make(map[EntityID]bool, g.NodeCount())
	count := 0
	for _, id := range g.Nodes() {
		if seen[id] {
			continue
		}
		count++
		stack := []EntityID{id}
		seen[id] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for n := range g.adj[cur] {
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return count
}

// DegreeSequence returns node degrees in ascending node-ID order.
func DegreeSequence(g *Graph) []float64 {
	nodes := g.Nodes()
	out := make([]float64, len(nodes))
	for i, id := range nodes {
		out[i] = float64(g.Degree(id))
	}
	return out
}

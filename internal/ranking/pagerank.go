// Package ranking computes node centrality over the substrate graph.
package ranking

import (
	"context"
	"math"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// ComputePageRank calculates PageRank scores for every node of g.
// Scores sum to 1. Isolated nodes keep only the teleport share and their
// rank mass is redistributed uniformly so the total stays 1.
//
// Algorithm: Standard power iteration
//  1. Initialize all nodes with score = 1/N
//  2. For each iteration:
//     PR(v) = (1-d)/N + d * (sum(PR(u)/deg(u)) for u adjacent to v + dangling/N)
//  3. Converge when max change < Tolerance
//
// The context is checked once per iteration.
func ComputePageRank(ctx context.Context, g *substrate.Graph, config PageRankConfig) (map[substrate.EntityID]float64, error) {
	nodes := g.Nodes()
	n := len(nodes)
	scores := make(map[substrate.EntityID]float64, n)
	if n == 0 {
		return scores, nil
	}

	neighbors := make(map[substrate.EntityID][]substrate.EntityID, n)
	for _, id := range nodes {
		neighbors[id] = g.Neighbors(id)
	}

	d := config.DampingFactor
	nf := float64(n)
	for _, id := range nodes {
		scores[id] = 1.0 / nf
	}

	for iter := 0; iter < config.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dangling := 0.0
		for _, id := range nodes {
			if len(neighbors[id]) == 0 {
				dangling += scores[id]
			}
		}

		newScores := make(map[substrate.EntityID]float64, n)
		maxDelta := 0.0
		for _, v := range nodes {
			sum := 0.0
			for _, u := range neighbors[v] {
				sum += scores[u] / float64(len(neighbors[u]))
			}
			newScore := (1.0-d)/nf + d*(sum+dangling/nf)
			newScores[v] = newScore

			if delta := math.Abs(newScore - scores[v]); delta > maxDelta {
				maxDelta = delta
			}
		}

		scores = newScores
		if maxDelta < config.Tolerance {
			break
		}
	}

	return scores, nil
}

// Top returns the highest-scoring node and its score relative to the uniform
// score 1/N (1.0 means no node stands out). Ties go to the lower ID.
func Top(scores map[substrate.EntityID]float64) (substrate.EntityID, float64, bool) {
	if len(scores) == 0 {
		return 0, 0, false
	}
	var best substrate.EntityID
	bestScore := math.Inf(-1)
	for id, s := range scores {
		if s > bestScore || (s == bestScore && id < best) {
			best, bestScore = id, s
		}
	}
	return best, bestScore * float64(len(scores)), true
}

package degeneration

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// Robustness estimates the critical fraction of nodes whose random removal
// fragments the graph. Each iteration removes nodes in random order while
// tracking the size of the largest component, smooths the gradient of that
// curve with a running mean of width window and takes the point of steepest
// change. The result is the mean breaking point as a fraction of the nodes.
// The graph is not modified.
func Robustness(ctx context.Context, g *brain.Graph, iterations, window int, rng *rand.Rand) (float64, error) {
	if iterations < 1 || window < 1 {
		return 0, fmt.Errorf("iterations %d and window %d must be positive: %w", iterations, window, brain.ErrInput)
	}
	nodes := g.Nodes()
	if len(nodes) < 3 {
		return 0, fmt.Errorf("robustness needs at least 3 nodes, have %d: %w", len(nodes), brain.ErrStructural)
	}

	breaks := make([]float64, iterations)
	order := append([]int(nil), nodes...)
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		ug := g.Undirected()
		sizes := make([]float64, len(order)-1)
		for i, id := range order[:len(order)-1] {
			ug.RemoveNode(int64(id))
			sizes[i] = largest(ug)
		}

		smooth := runningMean(gradient(sizes), window)
		change := make([]float64, len(smooth)-1)
		for i := range change {
			change[i] = smooth[i+1] - smooth[i]
		}
		breaks[it] = float64(floats.MinIdx(change))
	}
	return stat.Mean(breaks, nil) / float64(len(nodes)), nil
}

func largest(ug *simple.UndirectedGraph) float64 {
	best := 0
	for _, cc := range brain.Components(ug) {
		if len(cc) > best {
			best = len(cc)
		}
	}
	return float64(best)
}

// gradient uses central differences inside and one-sided ones at the ends.
func gradient(f []float64) []float64 {
	n := len(f)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = f[1] - f[0]
	out[n-1] = f[n-1] - f[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (f[i+1] - f[i-1]) / 2
	}
	return out
}

// runningMean averages each value with the window-1 values after it; windows
// running off the end are truncated but still divided by window.
func runningMean(f []float64, window int) []float64 {
	out := make([]float64, len(f))
	for i := range f {
		end := i + window
		if end > len(f) {
			end = len(f)
		}
		out[i] = floats.Sum(f[i:end]) / float64(window)
	}
	return out
}

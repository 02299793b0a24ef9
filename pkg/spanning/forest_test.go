package spanning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

func buildGraph(t *testing.T, n int, edges []brain.Edge) *brain.Graph {
	t.Helper()
	g := brain.NewGraph(false)
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.From, e.To, e.Weight))
	}
	return g
}

func fiveNodeSevenEdge() []brain.Edge {
	return []brain.Edge{
		{From: 0, To: 1, Weight: 2},
		{From: 0, To: 2, Weight: 3},
		{From: 1, To: 2, Weight: 1},
		{From: 1, To: 3, Weight: 4},
		{From: 2, To: 3, Weight: 5},
		{From: 3, To: 4, Weight: 7},
		{From: 2, To: 4, Weight: 6},
	}
}

func TestForestFiveNodes(t *testing.T) {
	g := buildGraph(t, 5, fiveNodeSevenEdge())

	f, err := Forest(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 4, f.EdgeCount())
	assert.Equal(t, 13.0, Weight(f.Edges()))
	assert.Equal(t, bruteForceWeight(5, g.Edges(), false), Weight(f.Edges()))
}

func TestForestMaximumOrder(t *testing.T) {
	g := buildGraph(t, 5, fiveNodeSevenEdge())

	f, err := Forest(context.Background(), g, WithMaximum())
	require.NoError(t, err)
	assert.Equal(t, 20.0, Weight(f.Edges()))
	assert.Equal(t, bruteForceWeight(5, g.Edges(), true), Weight(f.Edges()))
}

func TestForestKeepsIsolatedNodes(t *testing.T) {
	g := buildGraph(t, 6, []brain.Edge{
		{From: 0, To: 1, Weight: 1},
		{From: 1, To: 2, Weight: 1},
		{From: 0, To: 2, Weight: 1},
		{From: 3, To: 4, Weight: 2},
	})

	f, err := Forest(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, f.Nodes())
	assert.Equal(t, 0, f.Degree(5))
	// ties keep enumeration order: 0-1 then 0-2, so 1-2 closes the cycle
	assert.Equal(t, []brain.Edge{
		{From: 0, To: 1, Weight: 1},
		{From: 0, To: 2, Weight: 1},
		{From: 3, To: 4, Weight: 2},
	}, f.Edges())
}

func TestForestRejectsDirected(t *testing.T) {
	g := brain.NewGraph(true)
	g.AddNode(0)
	g.AddNode(1)
	require.NoError(t, g.AddEdge(0, 1, 1))

	_, err := Forest(context.Background(), g)
	assert.True(t, errors.Is(err, brain.ErrStructural))
}

func TestEdgesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Edges(ctx, []int{0, 1}, []brain.Edge{{From: 0, To: 1, Weight: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("max")
	require.NoError(t, err)
	assert.Equal(t, Maximum, o)

	_, err = ParseOrder("widest")
	assert.True(t, errors.Is(err, brain.ErrInput))
}

func TestForestProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("forest has nodeCount - componentCount edges", prop.ForAll(
		func(seed int64) bool {
			g := randomGraph(seed, 7, 10)
			f, err := Forest(context.Background(), g)
			if err != nil {
				return false
			}
			return f.EdgeCount() == g.NodeCount()-len(g.Components())
		},
		gen.Int64(),
	))

	properties.Property("forest weight is minimal", prop.ForAll(
		func(seed int64) bool {
			g := randomGraph(seed, 6, 9)
			f, err := Forest(context.Background(), g)
			if err != nil {
				return false
			}
			best := bruteForceWeight(g.NodeCount(), g.Edges(), false)
			return math.Abs(Weight(f.Edges())-best) < 1e-9
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func randomGraph(seed int64, n, maxEdges int) *brain.Graph {
	rng := rand.New(rand.NewSource(seed))
	g := brain.NewGraph(false)
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}
	m := rng.Intn(maxEdges + 1)
	for i := 0; i < m; i++ {
		u, v := rng.Intn(n), rng.Intn(n)
		if u == v {
			continue
		}
		_ = g.AddEdge(u, v, math.Round(rng.Float64()*100)/10-2)
	}
	return g
}

// bruteForceWeight enumerates every acyclic edge subset of maximal size and
// returns the best total weight.
func bruteForceWeight(n int, edges []brain.Edge, maximum bool) float64 {
	best := math.Inf(1)
	if maximum {
		best = math.Inf(-1)
	}
	bestSize := -1
	for mask := 0; mask < 1<<len(edges); mask++ {
		parent := make([]int, n)
		for i := range parent {
			parent[i] = i
		}
		var find func(int) int
		find = func(x int) int {
			if parent[x] != x {
				parent[x] = find(parent[x])
			}
			return parent[x]
		}
		size, total, acyclic := 0, 0.0, true
		for i, e := range edges {
			if mask&(1<<i) == 0 {
				continue
			}
			ru, rv := find(e.From), find(e.To)
			if ru == rv {
				acyclic = false
				break
			}
			parent[ru] = rv
			size++
			total += e.Weight
		}
		if !acyclic || size < bestSize {
			continue
		}
		if size > bestSize {
			bestSize = size
			best = total
			continue
		}
		if (maximum && total > best) || (!maximum && total < best) {
			best = total
		}
	}
	return best
}

package louvain

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/utils"
)

func quietConfig() *Config {
	c := NewConfig()
	c.Set("logging.level", "disabled")
	return c
}

// twoCliques builds two disjoint 4-cliques (0-3 and 4-7) with unit weights.
func twoCliques(t *testing.T) *brain.Brain {
	t.Helper()
	n := 8
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			if i/4 == j/4 {
				rows[i][j] = 1
			} else {
				rows[i][j] = math.NaN()
			}
		}
	}
	m, err := brain.NewMatrix(rows)
	require.NoError(t, err)
	return brain.New(m)
}

func TestDetectTwoCliques(t *testing.T) {
	b := twoCliques(t)
	res, err := Detect(context.Background(), b, quietConfig(), WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	assert.Greater(t, res.Modularity, 0.3)
	assert.InDelta(t, 0.5, res.Modularity, 1e-9)
	assert.Equal(t, 2, res.Levels[len(res.Levels)-1].NumCommunities)

	first, _ := nodeModule(t, b, 0)
	second, _ := nodeModule(t, b, 4)
	assert.NotEqual(t, first, second)
	for id := 0; id < 8; id++ {
		m, ok := nodeModule(t, b, id)
		require.True(t, ok)
		if id < 4 {
			assert.Equal(t, first, m)
		} else {
			assert.Equal(t, second, m)
		}
	}

	q, err := b.Modularity()
	require.NoError(t, err)
	assert.Equal(t, res.Modularity, q)
}

func nodeModule(t *testing.T, b *brain.Brain, id int) (int, bool) {
	t.Helper()
	n, ok := b.Graph.Node(id)
	require.True(t, ok)
	return n.Module()
}

func TestModularityMatchesGonum(t *testing.T) {
	b := twoCliques(t)
	for _, e := range b.Candidates() {
		require.NoError(t, b.Graph.AddEdge(e.From, e.To, e.Weight))
	}
	require.NoError(t, b.Graph.AddEdge(3, 4, 1))
	b.Reconstruct()

	res, err := Detect(context.Background(), b, quietConfig(), WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < 8; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < 8; i++ {
		for j := i + 1; j < 8; j++ {
			if w, ok := b.Matrix.Value(i, j); ok {
				g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(i), T: simple.Node(j), W: w})
			}
		}
	}
	byModule := make(map[int][]graph.Node)
	for id, c := range res.FinalCommunities {
		byModule[c] = append(byModule[c], simple.Node(id))
	}
	var comms [][]graph.Node
	for _, members := range byModule {
		comms = append(comms, members)
	}
	assert.InDelta(t, community.Q(g, comms, 1), res.Modularity, 1e-9)
}

func TestMaskedNodesGetOwnModule(t *testing.T) {
	b := twoCliques(t)
	require.NoError(t, b.Matrix.Exclude(7))

	res, err := Detect(context.Background(), b, quietConfig(), WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)

	assert.Equal(t, []int{7}, res.Excluded)
	_, inQ := res.FinalCommunities[7]
	assert.False(t, inQ)

	m, ok := nodeModule(t, b, 7)
	require.True(t, ok)
	for id := 0; id < 7; id++ {
		other, _ := nodeModule(t, b, id)
		assert.NotEqual(t, m, other)
	}
}

func TestDetectFailures(t *testing.T) {
	m, err := brain.NewMatrix([][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}})
	require.NoError(t, err)
	b := brain.New(m)
	require.NoError(t, b.Matrix.Exclude(0, 1))

	_, err = Detect(context.Background(), b, quietConfig())
	assert.True(t, errors.Is(err, brain.ErrStructural))

	zero, err := brain.NewMatrix([][]float64{{0, 0}, {0, 0}})
	require.NoError(t, err)
	_, err = Detect(context.Background(), brain.New(zero), quietConfig())
	assert.True(t, errors.Is(err, brain.ErrStructural))

	cfg := quietConfig()
	cfg.Set("algorithm.source", "elsewhere")
	_, err = Detect(context.Background(), twoCliques(t), cfg)
	assert.True(t, errors.Is(err, brain.ErrInput))
}

func TestDetectFromGraph(t *testing.T) {
	b := twoCliques(t)
	for _, e := range b.Candidates() {
		if e.From < 4 {
			require.NoError(t, b.Graph.AddEdge(e.From, e.To, e.Weight))
		}
	}
	cfg := quietConfig()
	cfg.Set("algorithm.source", SourceGraph)

	res, err := Detect(context.Background(), b, cfg, WithRand(rand.New(rand.NewSource(2))))
	require.NoError(t, err)
	// 4-7 carry no graph edges and stay singletons
	assert.Equal(t, 5, res.Levels[len(res.Levels)-1].NumCommunities)
}

func TestMoveTracking(t *testing.T) {
	var buf bytes.Buffer
	tracker := utils.NewMoveTracker(&buf, "louvain")

	res, err := Detect(context.Background(), twoCliques(t), quietConfig(),
		WithRand(rand.New(rand.NewSource(5))), WithMoveTracker(tracker))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, res.Statistics.TotalMoves, tracker.Moves())
	assert.Len(t, lines, tracker.Moves())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detect(ctx, twoCliques(t), quietConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "louvain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("algorithm:\n  max_levels: 3\n  random_seed: 42\n"), 0o644))

	c := NewConfig()
	require.NoError(t, c.LoadFromFile(path))
	assert.Equal(t, 3, c.MaxLevels())
	assert.Equal(t, int64(42), c.RandomSeed())
	assert.Equal(t, SourceMatrix, c.Source())
	assert.Equal(t, 1e-10, c.MinGain())
}

func TestModularityNonDecreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("Q increases across accepted levels", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			n := 12
			rows := make([][]float64, n)
			for i := range rows {
				rows[i] = make([]float64, n)
			}
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					if rng.Intn(3) == 0 {
						w := rng.Float64()
						rows[i][j], rows[j][i] = w, w
					}
				}
			}
			m, err := brain.NewMatrix(rows)
			if err != nil {
				return false
			}
			res, err := Detect(context.Background(), brain.New(m), quietConfig(), WithRand(rng))
			if errors.Is(err, brain.ErrStructural) {
				return true
			}
			if err != nil {
				return false
			}
			for i := 1; i < len(res.Levels); i++ {
				if res.Levels[i].Modularity < res.Levels[i-1].Modularity {
					return false
				}
			}
			return len(res.FinalCommunities) == n
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

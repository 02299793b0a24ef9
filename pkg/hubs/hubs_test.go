package hubs

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

func emptyBrain(t *testing.T, n int) *brain.Brain {
	t.Helper()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = math.NaN()
		}
	}
	m, err := brain.NewMatrix(rows)
	require.NoError(t, err)
	return brain.New(m)
}

func star(t *testing.T, leaves int, w float64) *brain.Brain {
	t.Helper()
	b := emptyBrain(t, leaves+1)
	for i := 1; i <= leaves; i++ {
		require.NoError(t, b.Graph.AddEdge(0, i, w))
	}
	return b
}

func TestStarCenterIsHub(t *testing.T) {
	b := star(t, 10, 1)
	opts := DefaultOptions()
	opts.SDThreshold = 1

	c, err := Compute(b.Graph, opts)
	require.NoError(t, err)
	res, err := Identify(b, c, opts)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, res.Hubs)
	assert.Equal(t, []int{0}, b.Hubs)
	for id := 1; id <= 10; id++ {
		assert.Less(t, res.Scores[id], res.Scores[0])
	}
	assert.InDelta(t, 3*math.Sqrt(10), res.Scores[0], 1e-9)

	n, _ := b.Graph.Node(0)
	score, ok := n.HubScore()
	require.True(t, ok)
	assert.Equal(t, res.Scores[0], score)
}

func TestWeightedStar(t *testing.T) {
	b := star(t, 10, 0.5)
	opts := DefaultOptions()
	opts.Weighted = true
	opts.SDThreshold = 1

	res, err := Run(b, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Hubs)
	assert.False(t, res.Pseudo)
}

func TestWeightedRejectsBadWeights(t *testing.T) {
	opts := DefaultOptions()
	opts.Weighted = true

	_, err := Compute(star(t, 3, -0.2).Graph, opts)
	assert.True(t, errors.Is(err, brain.ErrInput))

	_, err = Compute(star(t, 3, 2).Graph, opts)
	assert.True(t, errors.Is(err, brain.ErrInput))
}

func TestIdentifyNeedsCentrality(t *testing.T) {
	b := star(t, 4, 1)
	_, err := Identify(b, nil, DefaultOptions())
	assert.True(t, errors.Is(err, brain.ErrNotComputed))

	other, err := Compute(star(t, 2, 1).Graph, DefaultOptions())
	require.NoError(t, err)
	_, err = IdentifyPseudo(b, other, DefaultOptions())
	assert.True(t, errors.Is(err, brain.ErrNotComputed))
}

func TestPseudoQuota(t *testing.T) {
	b := star(t, 19, 1)
	opts := DefaultOptions()
	opts.Pseudo = true

	res, err := Run(b, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, res.Pseudo)
	assert.Equal(t, []int{0}, res.Hubs)
}

func TestPseudoEvictsAllTiedMinimums(t *testing.T) {
	n := 40
	b := emptyBrain(t, n)
	c := &Centrality{
		Nodes:       b.Graph.Nodes(),
		Betweenness: map[int]float64{},
		Closeness:   map[int]float64{},
		Degree:      map[int]float64{},
	}
	for _, id := range c.Nodes {
		c.Degree[id] = 0
	}
	c.Degree[0], c.Degree[1], c.Degree[2] = 1, 1, 3

	res, err := IdentifyPseudo(b, c, DefaultOptions())
	require.NoError(t, err)
	// quota 2: {0,1} tie at the minimum and both leave when 2 arrives,
	// then the set refills with the next node
	assert.Equal(t, []int{2, 3}, res.Hubs)
}

func TestConstantScoresFallBack(t *testing.T) {
	b := emptyBrain(t, 3)
	require.NoError(t, b.Graph.AddEdge(0, 1, 1))
	require.NoError(t, b.Graph.AddEdge(1, 2, 1))
	require.NoError(t, b.Graph.AddEdge(0, 2, 1))

	res, err := Run(b, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, res.Pseudo)
	assert.Len(t, res.Hubs, 1)
}

func TestClosenessOnDisconnectedGraph(t *testing.T) {
	b := star(t, 3, 1)
	b.Graph.AddNode(9)
	c, err := Compute(b.Graph, DefaultOptions())
	require.NoError(t, err)

	assert.Zero(t, c.Closeness[9])
	assert.Greater(t, c.Closeness[0], c.Closeness[1])
}

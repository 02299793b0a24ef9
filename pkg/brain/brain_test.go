package brain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var nan = math.NaN()

func squareMatrix(t *testing.T) *Matrix {
	t.Helper()
	m, err := NewMatrix([][]float64{
		{0, 0.9, 0.1, nan},
		{0.9, 0, 0.5, 0.3},
		{0.1, 0.5, 0, 0.7},
		{nan, 0.3, 0.7, 0},
	})
	require.NoError(t, err)
	return m
}

func TestNewMatrixRejectsNonSquare(t *testing.T) {
	_, err := NewMatrix([][]float64{{0, 1}, {1}})
	assert.True(t, errors.Is(err, ErrInput))

	_, err = NewMatrix(nil)
	assert.True(t, errors.Is(err, ErrInput))
}

func TestMatrixDiagonalAndMask(t *testing.T) {
	m := squareMatrix(t)
	assert.True(t, math.IsNaN(m.At(1, 1)))

	_, ok := m.Value(0, 3)
	assert.False(t, ok, "NaN entries are not connections")

	w, ok := m.Value(1, 2)
	require.True(t, ok)
	assert.Equal(t, 0.5, w)

	require.NoError(t, m.Exclude(2))
	_, ok = m.Value(1, 2)
	assert.False(t, ok, "excluded rows are ignored")
	assert.Equal(t, 0.5, m.At(1, 2), "mask does not overwrite data")
	assert.Equal(t, []int{2}, m.ExcludedNodes())

	m.Include(2)
	_, ok = m.Value(1, 2)
	assert.True(t, ok)

	assert.True(t, errors.Is(m.Exclude(9), ErrInput))
}

func TestNewBrainDropsEmptyRows(t *testing.T) {
	m, err := NewMatrix([][]float64{
		{0, 1, nan},
		{1, 0, nan},
		{nan, nan, 0},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, New(m).Graph.NodeCount())
	b := New(m, WithDropEmptyNodes())
	assert.Equal(t, []int{0, 1}, b.Graph.Nodes())
}

func TestGraphEdgesAreNormalized(t *testing.T) {
	g := NewGraph(false)
	for i := 0; i < 3; i++ {
		g.AddNode(i)
	}
	require.NoError(t, g.AddEdge(2, 0, 0.4))
	require.NoError(t, g.AddEdge(0, 2, 0.6))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []Edge{{From: 0, To: 2, Weight: 0.6}}, g.Edges())

	assert.True(t, errors.Is(g.AddEdge(1, 1, 1), ErrInput))
	assert.True(t, errors.Is(g.AddEdge(1, 7, 1), ErrNotFound))

	assert.True(t, g.RemoveEdge(2, 0))
	assert.Equal(t, 0, g.EdgeCount())
	assert.False(t, g.RemoveEdge(0, 2))
}

func TestDirectedNeighbors(t *testing.T) {
	g := NewGraph(true)
	for i := 0; i < 3; i++ {
		g.AddNode(i)
	}
	require.NoError(t, g.AddEdge(0, 1, 1))
	require.NoError(t, g.AddEdge(2, 0, 1))
	require.NoError(t, g.AddEdge(1, 0, 2))

	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []int{1, 2}, g.Neighbors(0))
	assert.Equal(t, 2, g.Degree(0))

	g.RemoveNode(0)
	assert.Equal(t, 0, g.EdgeCount())
}

func TestReconstructRoundTrip(t *testing.T) {
	b := New(squareMatrix(t))
	for _, e := range b.Candidates() {
		if e.Weight > 0.2 {
			require.NoError(t, b.Graph.AddEdge(e.From, e.To, e.Weight))
		}
	}
	want := b.Graph.Edges()

	m := b.Reconstruct()
	assert.True(t, math.IsNaN(m.At(0, 2)), "dropped edge becomes NaN")

	rebuilt := New(m)
	for _, e := range rebuilt.Candidates() {
		require.NoError(t, rebuilt.Graph.AddEdge(e.From, e.To, e.Weight))
	}
	assert.Equal(t, want, rebuilt.Graph.Edges())
}

func TestRefreshEdge(t *testing.T) {
	b := New(squareMatrix(t))
	require.NoError(t, b.Graph.AddEdge(1, 2, 0.5))
	require.NoError(t, b.Graph.SetWeight(1, 2, 0.25))

	b.RefreshEdge(1, 2)
	assert.Equal(t, 0.25, b.Matrix.At(2, 1))

	b.Graph.RemoveEdge(1, 2)
	b.RefreshEdge(2, 1)
	assert.True(t, math.IsNaN(b.Matrix.At(1, 2)))
}

func TestCloneIsIndependent(t *testing.T) {
	b := New(squareMatrix(t))
	require.NoError(t, b.Graph.AddEdge(0, 1, 0.9))
	n, _ := b.Graph.Node(0)
	n.Coord = &r3.Vec{X: 1}
	n.SetModule(3)

	c := b.Clone()
	c.Graph.RemoveEdge(0, 1)
	cn, _ := c.Graph.Node(0)
	cn.Coord.X = 5
	c.Matrix.Set(0, 1, 0)

	assert.True(t, b.Graph.HasEdge(0, 1))
	assert.Equal(t, 1.0, n.Coord.X)
	assert.Equal(t, 0.9, b.Matrix.At(0, 1))
	m, ok := cn.Module()
	assert.True(t, ok)
	assert.Equal(t, 3, m)
}

func TestPercentages(t *testing.T) {
	b := New(squareMatrix(t))
	require.NoError(t, b.Graph.AddEdge(0, 1, 0.9))
	require.NoError(t, b.Graph.AddEdge(2, 3, 0.7))

	assert.InDelta(t, 2.0/6.0, b.PercentConnected(), 1e-12)
	assert.InDelta(t, 3.0/6.0, b.ThresholdToPercentage(0.4), 1e-12)
}

func TestSubBrainByProperty(t *testing.T) {
	b := New(squareMatrix(t))
	for _, e := range b.Candidates() {
		require.NoError(t, b.Graph.AddEdge(e.From, e.To, e.Weight))
	}
	require.NoError(t, b.SetProperty("hemisphere", []int{0, 1, 2, 3},
		[]Value{String("L"), String("L"), String("R"), String("L")}))

	sub := b.SubBrain(PropertyEquals("hemisphere", String("L")))
	assert.Equal(t, []int{0, 1, 3}, sub.Graph.Nodes())
	assert.Equal(t, []Edge{{From: 0, To: 1, Weight: 0.9}, {From: 1, To: 3, Weight: 0.3}}, sub.Graph.Edges())
	assert.True(t, math.IsNaN(sub.Matrix.At(1, 2)))

	assert.True(t, errors.Is(b.SetProperty("x", []int{9}, []Value{Float(1)}), ErrNotFound))
}

func TestNodeTable(t *testing.T) {
	b := New(squareMatrix(t))
	err := b.SetNodeTable([]NodeInfo{{Label: "a"}})
	assert.True(t, errors.Is(err, ErrInput))

	rows := []NodeInfo{
		{Label: "a", Coord: &r3.Vec{X: 0}},
		{Label: "b", Coord: &r3.Vec{X: 1}},
		{Label: "c"},
		{Label: "d"},
	}
	require.NoError(t, b.SetNodeTable(rows))
	n, _ := b.Graph.Node(1)
	assert.Equal(t, "b", n.Label)
	assert.Equal(t, 1.0, n.Coord.X)
}

func TestModularityNotComputed(t *testing.T) {
	b := New(squareMatrix(t))
	_, err := b.Modularity()
	assert.True(t, errors.Is(err, ErrNotComputed))

	b.SetModularity(0.4)
	q, err := b.Modularity()
	require.NoError(t, err)
	assert.Equal(t, 0.4, q)
}

func TestLargestComponent(t *testing.T) {
	g := NewGraph(false)
	for i := 0; i < 6; i++ {
		g.AddNode(i)
	}
	require.NoError(t, g.AddEdge(0, 1, 1))
	require.NoError(t, g.AddEdge(3, 4, 1))
	require.NoError(t, g.AddEdge(4, 5, 1))

	assert.Equal(t, []int{3, 4, 5}, g.LargestComponent())
	assert.Len(t, g.Components(), 3)
}

func TestValueJSON(t *testing.T) {
	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte(`"frontal"`)))
	s, ok := v.Str()
	assert.True(t, ok)
	assert.Equal(t, "frontal", s)

	data, err := Float(2.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "2.5", string(data))
}

// Package brain holds the data model shared by every analysis step: the raw
// adjacency matrix with its exclusion mask, the thresholded graph, and the
// Brain aggregate that owns both.
//
// A Brain is mutable shared state. Every operation in the analysis packages
// mutates it in place; callers that need concurrent access must serialize it
// or work on a Clone.
package brain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Brain owns one Graph/Matrix pair for an analysis session.
type Brain struct {
	Graph  *Graph
	Matrix *Matrix
	Hubs   []int

	modularity    float64
	hasModularity bool
}

// Option configures New.
type Option func(*options)

type options struct {
	directed      bool
	dropEmptyRows bool
}

// WithDirected builds a directed graph.
func WithDirected() Option { return func(o *options) { o.directed = true } }

// WithDropEmptyNodes skips matrix rows that hold no measured connection.
func WithDropEmptyNodes() Option { return func(o *options) { o.dropEmptyRows = true } }

// New creates a Brain with one node per matrix row and no edges.
func New(m *Matrix, opts ...Option) *Brain {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	g := NewGraph(o.directed)
	for i := 0; i < m.Size(); i++ {
		if o.dropEmptyRows && m.EmptyRow(i) {
			continue
		}
		g.AddNode(i)
	}
	return &Brain{Graph: g, Matrix: m}
}

// NodeInfo is one row of the positional node table.
type NodeInfo struct {
	Label string
	Coord *r3.Vec
}

// SetNodeTable attaches labels and coordinates, 1:1 with matrix rows.
// Rows for nodes that are not in the graph are ignored.
func (b *Brain) SetNodeTable(rows []NodeInfo) error {
	if len(rows) != b.Matrix.Size() {
		return fmt.Errorf("node table has %d rows, matrix has %d: %w", len(rows), b.Matrix.Size(), ErrInput)
	}
	for i, row := range rows {
		n, ok := b.Graph.Node(i)
		if !ok {
			continue
		}
		n.Label = row.Label
		if row.Coord != nil {
			c := *row.Coord
			n.Coord = &c
		}
	}
	return nil
}

// SetProperty assigns values[i] to property name on nodes[i].
func (b *Brain) SetProperty(name string, nodes []int, values []Value) error {
	if len(nodes) != len(values) {
		return fmt.Errorf("property %q: %d nodes but %d values: %w", name, len(nodes), len(values), ErrInput)
	}
	for _, id := range nodes {
		if !b.Graph.HasNode(id) {
			return fmt.Errorf("property %q: node %d: %w", name, id, ErrNotFound)
		}
	}
	for i, id := range nodes {
		n, _ := b.Graph.Node(id)
		if n.Props == nil {
			n.Props = make(Properties)
		}
		n.Props[name] = values[i]
	}
	return nil
}

// Candidates lists every pair of live nodes with an eligible matrix entry,
// in row-major order. Undirected pairs use the upper-triangle entry and fall
// back to the lower one when it is missing.
func (b *Brain) Candidates() []Edge {
	nodes := b.Graph.Nodes()
	var out []Edge
	for a, i := range nodes {
		for c, j := range nodes {
			if b.Graph.Directed() {
				if a == c {
					continue
				}
			} else if c <= a {
				continue
			}
			if w, ok := b.PairWeight(i, j); ok {
				out = append(out, Edge{From: i, To: j, Weight: w})
			}
		}
	}
	return out
}

// PairWeight is the matrix weight the graph would use for an edge i-j.
func (b *Brain) PairWeight(i, j int) (float64, bool) {
	if w, ok := b.Matrix.Value(i, j); ok {
		return w, true
	}
	if b.Graph.Directed() {
		return 0, false
	}
	return b.Matrix.Value(j, i)
}

// PossibleEdges is the number of node pairs the graph could link.
func (b *Brain) PossibleEdges() int {
	n := b.Graph.NodeCount()
	if b.Graph.Directed() {
		return n * (n - 1)
	}
	return n * (n - 1) / 2
}

// PercentConnected is the fraction of possible edges present.
func (b *Brain) PercentConnected() float64 {
	p := b.PossibleEdges()
	if p == 0 {
		return 0
	}
	return float64(b.Graph.EdgeCount()) / float64(p)
}

// ThresholdToPercentage returns the fraction of possible edges whose matrix
// weight exceeds t.
func (b *Brain) ThresholdToPercentage(t float64) float64 {
	p := b.PossibleEdges()
	if p == 0 {
		return 0
	}
	count := 0
	for _, e := range b.Candidates() {
		if e.Weight > t {
			count++
		}
	}
	return float64(count) / float64(p)
}

// Reconstruct rebuilds the matrix from the graph's edges. Entries without an
// edge become NaN. The exclusion mask is kept.
func (b *Brain) Reconstruct() *Matrix {
	n := b.Matrix.Size()
	for _, id := range b.Graph.Nodes() {
		if id+1 > n {
			n = id + 1
		}
	}
	m := NaNMatrix(n)
	for id := range b.Matrix.excluded {
		if id < n {
			m.excluded[id] = true
		}
	}
	for _, e := range b.Graph.Edges() {
		m.dense.Set(e.From, e.To, e.Weight)
		if !b.Graph.Directed() {
			m.dense.Set(e.To, e.From, e.Weight)
		}
	}
	b.Matrix = m
	return m
}

// RefreshEdge copies the graph's current weight for u-v into the matrix, or
// NaN when the edge no longer exists.
func (b *Brain) RefreshEdge(u, v int) {
	n := b.Matrix.Size()
	if u >= n || v >= n {
		return
	}
	w, ok := b.Graph.Weight(u, v)
	if !ok {
		w = math.NaN()
	}
	b.Matrix.Set(u, v, w)
	if !b.Graph.Directed() {
		b.Matrix.Set(v, u, w)
	}
}

// Binarise sets every edge weight to 1.
func (b *Brain) Binarise() {
	for _, e := range b.Graph.Edges() {
		_ = b.Graph.SetWeight(e.From, e.To, 1)
	}
}

// LinkedNodes returns the ids directly linked to id.
func (b *Brain) LinkedNodes(id int) ([]int, error) {
	if !b.Graph.HasNode(id) {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return b.Graph.Neighbors(id), nil
}

// LargestComponent returns the node ids of the biggest connected component.
func (b *Brain) LargestComponent() []int { return b.Graph.LargestComponent() }

// Modularity returns Q from the last community detection.
func (b *Brain) Modularity() (float64, error) {
	if !b.hasModularity {
		return 0, fmt.Errorf("modularity: %w", ErrNotComputed)
	}
	return b.modularity, nil
}

func (b *Brain) SetModularity(q float64) { b.modularity, b.hasModularity = q, true }

// Clone returns a deep copy.
func (b *Brain) Clone() *Brain {
	c := &Brain{
		Graph:         b.Graph.Clone(),
		Matrix:        b.Matrix.Clone(),
		modularity:    b.modularity,
		hasModularity: b.hasModularity,
	}
	if b.Hubs != nil {
		c.Hubs = append([]int(nil), b.Hubs...)
	}
	return c
}

// SubBrain returns a copy restricted to the nodes accepted by keep. Node ids,
// edges among kept nodes and the threshold are preserved; matrix rows and
// columns of dropped nodes become NaN.
func (b *Brain) SubBrain(keep func(*Node) bool) *Brain {
	g := NewGraph(b.Graph.Directed())
	g.SetThreshold(b.Graph.Threshold())
	for _, id := range b.Graph.Nodes() {
		n, _ := b.Graph.Node(id)
		if keep(n) {
			g.nodes[id] = n.clone()
			g.out[id] = make(map[int]float64)
			if g.directed {
				g.in[id] = make(map[int]float64)
			}
		}
	}
	for _, e := range b.Graph.Edges() {
		if g.HasNode(e.From) && g.HasNode(e.To) {
			_ = g.AddEdge(e.From, e.To, e.Weight)
		}
	}
	m := b.Matrix.Clone()
	for i := 0; i < m.Size(); i++ {
		if g.HasNode(i) {
			continue
		}
		for j := 0; j < m.Size(); j++ {
			m.dense.Set(i, j, math.NaN())
			m.dense.Set(j, i, math.NaN())
		}
	}
	sub := &Brain{Graph: g, Matrix: m}
	for _, h := range b.Hubs {
		if g.HasNode(h) {
			sub.Hubs = append(sub.Hubs, h)
		}
	}
	return sub
}

// PropertyEquals selects nodes whose property equals v.
func PropertyEquals(name string, v Value) func(*Node) bool {
	return func(n *Node) bool {
		got, ok := n.Props.Get(name)
		return ok && got.Equal(v)
	}
}

// PropertyInRange selects nodes whose float property lies in [lo, hi].
func PropertyInRange(name string, lo, hi float64) func(*Node) bool {
	return func(n *Node) bool {
		got, ok := n.Props.Get(name)
		if !ok {
			return false
		}
		f, ok := got.Float()
		return ok && f >= lo && f <= hi
	}
}

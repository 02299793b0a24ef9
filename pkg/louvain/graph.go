package louvain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// Graph is the dense weighted matrix the optimizer works on. Masked nodes
// are not part of it.
type Graph struct {
	NumNodes    int
	Weights     *mat.Dense // Weights.At(i, j) = weight from node i to node j
	Degrees     []float64  // Degrees[i] = row sum of node i
	TotalWeight float64    // sum of every entry
	Nodes       []int      // Nodes[i] = brain node id of row i
}

// NewGraph wraps a square weight matrix. nodes maps rows to external ids; nil
// means rows are their own ids.
func NewGraph(w *mat.Dense, nodes []int) *Graph {
	n, _ := w.Dims()
	if nodes == nil {
		nodes = make([]int, n)
		for i := range nodes {
			nodes[i] = i
		}
	}
	g := &Graph{NumNodes: n, Weights: w, Degrees: make([]float64, n), Nodes: nodes}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.Degrees[i] += w.At(i, j)
		}
		g.TotalWeight += g.Degrees[i]
	}
	return g
}

// FromBrain builds the working matrix from a brain. Live, unmasked nodes are
// kept in ascending id order; missing entries become 0 and the diagonal is
// set to diagonal. source picks the raw matrix or the thresholded graph.
// The second return lists live nodes left out because they are masked.
func FromBrain(b *brain.Brain, source string, diagonal float64) (*Graph, []int, error) {
	var nodes, masked []int
	for _, id := range b.Graph.Nodes() {
		if b.Matrix.Excluded(id) {
			masked = append(masked, id)
			continue
		}
		nodes = append(nodes, id)
	}

	n := len(nodes)
	if n < 2 {
		return nil, masked, fmt.Errorf("modularity needs at least 2 unmasked nodes, have %d: %w", n, brain.ErrStructural)
	}

	w := mat.NewDense(n, n, nil)
	for a, i := range nodes {
		for c, j := range nodes {
			if a == c {
				w.Set(a, c, diagonal)
				continue
			}
			var (
				v  float64
				ok bool
			)
			switch source {
			case SourceGraph:
				v, ok = b.Graph.Weight(i, j)
			case SourceMatrix, "":
				v, ok = b.Matrix.Value(i, j)
			default:
				return nil, masked, fmt.Errorf("unknown weight source %q: %w", source, brain.ErrInput)
			}
			if ok {
				w.Set(a, c, v)
			}
		}
	}

	g := NewGraph(w, nodes)
	if err := g.Validate(); err != nil {
		return nil, masked, err
	}
	return g, masked, nil
}

// Validate checks graph consistency
func (g *Graph) Validate() error {
	if g.NumNodes < 2 {
		return fmt.Errorf("graph has %d nodes: %w", g.NumNodes, brain.ErrStructural)
	}
	for i := 0; i < g.NumNodes; i++ {
		for j := 0; j < g.NumNodes; j++ {
			v := g.Weights.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("weight %d-%d is %v: %w", i, j, v, brain.ErrInput)
			}
		}
	}
	if g.TotalWeight == 0 {
		return fmt.Errorf("total edge weight is zero: %w", brain.ErrStructural)
	}
	return nil
}

// Clone creates a deep copy of the graph
func (g *Graph) Clone() *Graph {
	return NewGraph(mat.DenseCopyOf(g.Weights), append([]int(nil), g.Nodes...))
}

// Modularity of the partition where every row is its own module:
// trace(W)/s - Σ (column sum/s)².
func (g *Graph) Modularity() float64 {
	s := g.TotalWeight
	q := mat.Trace(g.Weights) / s
	for j := 0; j < g.NumNodes; j++ {
		col := mat.Sum(g.Weights.ColView(j)) / s
		q -= col * col
	}
	return q
}

package brain

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Undirected converts the graph to an unweighted gonum graph. Directed edges
// are folded, so components computed on it are weakly connected components.
func (g *Graph) Undirected() *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for _, id := range g.Nodes() {
		ug.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges() {
		if ug.HasEdgeBetween(int64(e.From), int64(e.To)) {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}
	return ug
}

// Weighted converts the graph to a weighted gonum graph, applying transform to
// every edge weight (nil keeps the weight). Orientation is preserved.
func (g *Graph) Weighted(transform func(float64) float64) graph.Weighted {
	if transform == nil {
		transform = func(w float64) float64 { return w }
	}
	if g.directed {
		dg := simple.NewWeightedDirectedGraph(0, 0)
		for _, id := range g.Nodes() {
			dg.AddNode(simple.Node(id))
		}
		for _, e := range g.Edges() {
			dg.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.From), T: simple.Node(e.To), W: transform(e.Weight)})
		}
		return dg
	}
	ug := simple.NewWeightedUndirectedGraph(0, 0)
	for _, id := range g.Nodes() {
		ug.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges() {
		ug.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.From), T: simple.Node(e.To), W: transform(e.Weight)})
	}
	return ug
}

// Components returns the (weakly) connected components, each sorted, ordered
// by their smallest node id.
func (g *Graph) Components() [][]int {
	return Components(g.Undirected())
}

// Components lists the connected components of a gonum graph as sorted ids.
func Components(ug graph.Undirected) [][]int {
	var comps [][]int
	for _, cc := range topo.ConnectedComponents(ug) {
		ids := make([]int, len(cc))
		for i, n := range cc {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		comps = append(comps, ids)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// LargestComponent returns the node ids of the biggest connected component.
// Ties go to the component holding the smallest id.
func (g *Graph) LargestComponent() []int {
	var best []int
	for _, cc := range g.Components() {
		if len(cc) > len(best) {
			best = cc
		}
	}
	return best
}

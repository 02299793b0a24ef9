// Package spanning builds minimum (or maximum) spanning forests with
// Kruskal's algorithm.
package spanning

import (
	"context"
	"fmt"
	"sort"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// Order selects which forest Kruskal builds.
type Order int

const (
	// Minimum keeps the lightest edges (the default).
	Minimum Order = iota
	// Maximum keeps the strongest edges.
	Maximum
)

func (o Order) String() string {
	if o == Maximum {
		return "maximum"
	}
	return "minimum"
}

// ParseOrder accepts "minimum"/"min" and "maximum"/"max".
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "min", "minimum":
		return Minimum, nil
	case "max", "maximum":
		return Maximum, nil
	default:
		return Minimum, fmt.Errorf("spanning order %q: %w", s, brain.ErrInput)
	}
}

type options struct {
	order Order
}

// Option configures Forest and Edges.
type Option func(*options)

// WithOrder selects minimum or maximum forests.
func WithOrder(o Order) Option { return func(opts *options) { opts.order = o } }

// WithMaximum builds the maximum-weight forest.
func WithMaximum() Option { return WithOrder(Maximum) }

const ctxCheckEvery = 256

// Forest returns a new graph holding every node of g and the edges of its
// spanning forest. Isolated nodes are kept. The threshold is copied from g.
func Forest(ctx context.Context, g *brain.Graph, opts ...Option) (*brain.Graph, error) {
	if g.Directed() {
		return nil, fmt.Errorf("spanning forest of a directed graph: %w", brain.ErrStructural)
	}
	edges, err := Edges(ctx, g.Nodes(), g.Edges(), opts...)
	if err != nil {
		return nil, err
	}

	out := brain.NewGraph(false)
	out.SetThreshold(g.Threshold())
	for _, id := range g.Nodes() {
		n := out.AddNode(id)
		src, _ := g.Node(id)
		n.Label = src.Label
		if src.Coord != nil {
			c := *src.Coord
			n.Coord = &c
		}
	}
	for _, e := range edges {
		if err := out.AddEdge(e.From, e.To, e.Weight); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Edges runs Kruskal over an explicit undirected edge list. Ties keep the
// order of the input slice. Endpoints absent from nodes are rejected.
func Edges(ctx context.Context, nodes []int, edges []brain.Edge, opts ...Option) ([]brain.Edge, error) {
	o := options{order: Minimum}
	for _, opt := range opts {
		opt(&o)
	}

	parent := make(map[int]int, len(nodes))
	rank := make(map[int]int, len(nodes))
	for _, id := range nodes {
		parent[id] = id
	}

	sorted := make([]brain.Edge, 0, len(edges))
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		if _, ok := parent[e.From]; !ok {
			return nil, fmt.Errorf("edge %d-%d: node %d: %w", e.From, e.To, e.From, brain.ErrNotFound)
		}
		if _, ok := parent[e.To]; !ok {
			return nil, fmt.Errorf("edge %d-%d: node %d: %w", e.From, e.To, e.To, brain.ErrNotFound)
		}
		sorted = append(sorted, e)
	}
	if o.order == Maximum {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	} else {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight < sorted[j].Weight })
	}

	find := func(u int) int {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}

	var forest []brain.Edge
	for i, e := range sorted {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ru, rv := find(e.From), find(e.To)
		if ru == rv {
			continue
		}
		switch {
		case rank[ru] < rank[rv]:
			parent[ru] = rv
		case rank[ru] > rank[rv]:
			parent[rv] = ru
		default:
			parent[rv] = ru
			rank[ru]++
		}
		if e.From > e.To {
			e.From, e.To = e.To, e.From
		}
		forest = append(forest, e)
		if len(forest) == len(nodes)-1 {
			break
		}
	}
	return forest, nil
}

// Weight sums edge weights.
func Weight(edges []brain.Edge) float64 {
	total := 0.0
	for _, e := range edges {
		total += e.Weight
	}
	return total
}

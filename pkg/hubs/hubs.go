// Package hubs flags hub nodes from a composite of betweenness, closeness
// and degree centrality.
package hubs

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// Options controls centrality and hub selection.
type Options struct {
	// SDThreshold: hubs score above mean + SDThreshold·stddev.
	SDThreshold float64
	// Weighted uses edge weights for betweenness and degree, and
	// DistanceConstant - weight as the closeness distance.
	Weighted         bool
	DistanceConstant float64
	// Pseudo selects a fixed Quota of nodes instead of the outlier rule.
	Pseudo bool
	Quota  float64
}

// DefaultOptions mirrors the usual analysis settings.
func DefaultOptions() Options {
	return Options{SDThreshold: 2, DistanceConstant: 1.00001, Quota: 0.05}
}

// Centrality holds the raw measures per node id.
type Centrality struct {
	Nodes       []int           `json:"nodes"`
	Betweenness map[int]float64 `json:"betweenness"`
	Closeness   map[int]float64 `json:"closeness"`
	Degree      map[int]float64 `json:"degree"`
	Weighted    bool            `json:"weighted"`
}

// Result is the outcome of hub identification.
type Result struct {
	Hubs   []int           `json:"hubs"`
	Scores map[int]float64 `json:"scores"`
	Mean   float64         `json:"mean"`
	StdDev float64         `json:"stddev"`
	Limit  float64         `json:"limit"`
	Pseudo bool            `json:"pseudo"`
}

// Compute measures betweenness, closeness and degree for every node.
func Compute(g *brain.Graph, opts Options) (*Centrality, error) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, fmt.Errorf("centrality of an empty graph: %w", brain.ErrStructural)
	}
	if opts.Weighted {
		for _, e := range g.Edges() {
			if e.Weight < 0 {
				return nil, fmt.Errorf("edge %d-%d has negative weight %v: %w", e.From, e.To, e.Weight, brain.ErrInput)
			}
			if e.Weight >= opts.DistanceConstant {
				return nil, fmt.Errorf("edge %d-%d weight %v reaches distance constant %v: %w", e.From, e.To, e.Weight, opts.DistanceConstant, brain.ErrInput)
			}
		}
	}

	c := &Centrality{
		Nodes:       nodes,
		Betweenness: make(map[int]float64, len(nodes)),
		Closeness:   make(map[int]float64, len(nodes)),
		Degree:      make(map[int]float64, len(nodes)),
		Weighted:    opts.Weighted,
	}

	var (
		between map[int64]float64
		dist    graph.Weighted
	)
	if opts.Weighted {
		wg := g.Weighted(nil)
		between = network.BetweennessWeighted(wg, path.DijkstraAllPaths(wg))
		dist = g.Weighted(func(w float64) float64 { return opts.DistanceConstant - w })
	} else {
		unit := g.Weighted(func(float64) float64 { return 1 })
		between = network.Betweenness(unit)
		dist = unit
	}
	closeness := closenessCentrality(dist, nodes)

	for _, id := range nodes {
		c.Betweenness[id] = between[int64(id)]
		c.Closeness[id] = closeness[id]
		if opts.Weighted {
			c.Degree[id] = g.Strength(id)
		} else {
			c.Degree[id] = float64(g.Degree(id))
		}
	}
	return c, nil
}

// closenessCentrality scales by the reachable fraction so disconnected graphs
// do not collapse every score to zero.
func closenessCentrality(g graph.Weighted, nodes []int) map[int]float64 {
	paths := path.DijkstraAllPaths(g)
	n := len(nodes)
	out := make(map[int]float64, n)
	for _, u := range nodes {
		sum, reach := 0.0, 0
		for _, v := range nodes {
			if u == v {
				continue
			}
			d := paths.Weight(int64(u), int64(v))
			if math.IsInf(d, 1) {
				continue
			}
			sum += d
			reach++
		}
		if reach == 0 || sum == 0 {
			out[u] = 0
			continue
		}
		r := float64(reach)
		out[u] = (r / sum) * (r / float64(n-1))
	}
	return out
}

// Identify flags nodes whose composite z-score exceeds mean + SDThreshold·std
// and records composite scores on the brain. c must come from Compute on the
// brain's current graph.
func Identify(b *brain.Brain, c *Centrality, opts Options) (*Result, error) {
	if err := covers(b, c); err != nil {
		return nil, err
	}
	scores := make(map[int]float64, len(c.Nodes))
	for _, measure := range []map[int]float64{c.Betweenness, c.Closeness, c.Degree} {
		for id, z := range zScores(c.Nodes, measure) {
			scores[id] += z
		}
	}

	values := collect(c.Nodes, scores)
	mean, std := stat.PopMeanStdDev(values, nil)
	res := &Result{Scores: scores, Mean: mean, StdDev: std, Limit: mean + opts.SDThreshold*std}
	for _, id := range c.Nodes {
		if scores[id] > res.Limit {
			res.Hubs = append(res.Hubs, id)
		}
	}
	record(b, res)
	return res, nil
}

// IdentifyPseudo selects a fixed quota of nodes (at least one) by composite
// score without standardisation. Each measure is divided by its total. When a
// better node arrives every member tied at the current minimum is evicted.
func IdentifyPseudo(b *brain.Brain, c *Centrality, opts Options) (*Result, error) {
	if err := covers(b, c); err != nil {
		return nil, err
	}
	scores := make(map[int]float64, len(c.Nodes))
	for _, measure := range []map[int]float64{c.Betweenness, c.Closeness, c.Degree} {
		total := floats.Sum(collect(c.Nodes, measure))
		if total == 0 {
			continue
		}
		for _, id := range c.Nodes {
			scores[id] += measure[id] / total
		}
	}

	quota := math.Max(float64(len(c.Nodes))*opts.Quota, 1)
	var set []int
	for _, id := range c.Nodes {
		if float64(len(set)) < quota {
			set = append(set, id)
			continue
		}
		lowest := math.Inf(1)
		for _, h := range set {
			lowest = math.Min(lowest, scores[h])
		}
		if scores[id] <= lowest {
			continue
		}
		kept := set[:0]
		for _, h := range set {
			if scores[h] != lowest {
				kept = append(kept, h)
			}
		}
		set = append(kept, id)
	}

	values := collect(c.Nodes, scores)
	mean, std := stat.PopMeanStdDev(values, nil)
	res := &Result{Hubs: set, Scores: scores, Mean: mean, StdDev: std, Pseudo: true}
	record(b, res)
	return res, nil
}

// Run computes centrality and identifies hubs, falling back to the quota
// rule when asked to or when the composite scores have no spread.
func Run(b *brain.Brain, opts Options, logger zerolog.Logger) (*Result, error) {
	c, err := Compute(b.Graph, opts)
	if err != nil {
		return nil, err
	}
	var res *Result
	if opts.Pseudo {
		res, err = IdentifyPseudo(b, c, opts)
	} else {
		res, err = Identify(b, c, opts)
		if err == nil && res.StdDev == 0 {
			logger.Warn().Msg("Composite hub scores are constant, using quota selection")
			res, err = IdentifyPseudo(b, c, opts)
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("nodes", len(c.Nodes)).
		Int("hubs", len(res.Hubs)).
		Bool("pseudo", res.Pseudo).
		Float64("limit", res.Limit).
		Msg("Hubs identified")
	return res, nil
}

func covers(b *brain.Brain, c *Centrality) error {
	if c == nil {
		return fmt.Errorf("centrality: %w", brain.ErrNotComputed)
	}
	for _, id := range b.Graph.Nodes() {
		if _, ok := c.Degree[id]; !ok {
			return fmt.Errorf("centrality for node %d: %w", id, brain.ErrNotComputed)
		}
	}
	return nil
}

func record(b *brain.Brain, res *Result) {
	for id, s := range res.Scores {
		if n, ok := b.Graph.Node(id); ok {
			n.SetHubScore(s)
		}
	}
	b.Hubs = append([]int(nil), res.Hubs...)
}

// zScores standardises a measure with the population standard deviation. A
// measure without spread contributes zero.
func zScores(nodes []int, measure map[int]float64) map[int]float64 {
	mean, std := stat.PopMeanStdDev(collect(nodes, measure), nil)
	out := make(map[int]float64, len(nodes))
	for _, id := range nodes {
		if std == 0 {
			out[id] = 0
			continue
		}
		out[id] = (measure[id] - mean) / std
	}
	return out
}

func collect(nodes []int, m map[int]float64) []float64 {
	out := make([]float64, len(nodes))
	for i, id := range nodes {
		out[i] = m[id]
	}
	return out
}

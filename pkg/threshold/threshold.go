// Package threshold reduces a brain's adjacency matrix to a sparse graph.
//
// Three strategies are supported: a global cutoff (absolute value, edge
// percentage or edge count), local growth from a spanning forest through
// k-nearest-neighbour graphs, and rethresholding of an existing graph by its
// stored weights. The new edge set is computed in full before the graph is
// touched, so a returned error always leaves the brain unchanged.
package threshold

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/spanning"
)

// Mode selects the thresholding strategy.
type Mode int

const (
	Global Mode = iota
	Local
)

func (m Mode) String() string {
	if m == Local {
		return "local"
	}
	return "global"
}

// ParseMode accepts "global" and "local".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "global":
		return Global, nil
	case "local":
		return Local, nil
	default:
		return Global, fmt.Errorf("threshold mode %q: %w", s, brain.ErrInput)
	}
}

// Request describes one thresholding call. When several targets are set the
// precedence is EdgePercent > TotalEdges > Value. With none set every
// eligible pair is kept.
type Request struct {
	Mode             Mode
	Value            *float64
	EdgePercent      *float64
	TotalEdges       *int
	KeepSpanningTree bool
	Rethreshold      bool
	SpanningOrder    spanning.Order
}

// Result reports what Apply did.
type Result struct {
	Mode        string   `json:"mode" yaml:"mode"`
	Threshold   float64  `json:"threshold" yaml:"threshold"`
	Target      int      `json:"target" yaml:"target"`
	Edges       int      `json:"edges" yaml:"edges"`
	ForestEdges int      `json:"forestEdges" yaml:"forest_edges"`
	Shortfall   int      `json:"shortfall" yaml:"shortfall"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Ptr returns a pointer to v, for filling optional Request fields.
func Ptr[T any](v T) *T { return &v }

// Engine applies thresholding requests.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates an engine logging to logger.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "threshold").Logger()}
}

// target resolves the requested edge count. ok is false for value or
// fully connected requests.
func (r Request) target(possible int) (k int, ok bool, err error) {
	switch {
	case r.EdgePercent != nil:
		p := *r.EdgePercent
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, false, fmt.Errorf("edge percentage %v outside [0,1]: %w", p, brain.ErrInput)
		}
		return int(p * float64(possible)), true, nil
	case r.TotalEdges != nil:
		if *r.TotalEdges < 0 {
			return 0, false, fmt.Errorf("negative edge count %d: %w", *r.TotalEdges, brain.ErrInput)
		}
		return *r.TotalEdges, true, nil
	case r.Value != nil && math.IsNaN(*r.Value):
		return 0, false, fmt.Errorf("threshold value is NaN: %w", brain.ErrInput)
	}
	return 0, false, nil
}

// Apply replaces (or prunes) the brain's edge set according to req.
func (e *Engine) Apply(ctx context.Context, b *brain.Brain, req Request) (*Result, error) {
	if req.KeepSpanningTree && b.Graph.Directed() {
		return nil, fmt.Errorf("spanning tree floor on a directed graph: %w", brain.ErrStructural)
	}

	var (
		res *Result
		err error
	)
	switch {
	case req.Mode == Local && req.Rethreshold:
		return nil, fmt.Errorf("local thresholding cannot rethreshold: %w", brain.ErrInput)
	case req.Mode == Local:
		res, err = e.local(ctx, b, req)
	case req.Rethreshold:
		res, err = e.rethreshold(ctx, b, req)
	default:
		res, err = e.global(ctx, b, req)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("mode", res.Mode).
		Float64("threshold", res.Threshold).
		Int("target", res.Target).
		Int("edges", res.Edges).
		Int("forest_edges", res.ForestEdges).
		Msg("Threshold applied")
	return res, nil
}

func (e *Engine) global(ctx context.Context, b *brain.Brain, req Request) (*Result, error) {
	k, hasTarget, err := req.target(b.PossibleEdges())
	if err != nil {
		return nil, err
	}
	candidates := b.Candidates()

	res := &Result{Mode: "global", Target: -1}
	kept, cutoff, err := e.selectEdges(ctx, b.Graph.Nodes(), candidates, req, k, hasTarget, res)
	if err != nil {
		return nil, err
	}

	g := b.Graph
	g.ClearEdges()
	for _, edge := range kept {
		if err := g.AddEdge(edge.From, edge.To, edge.Weight); err != nil {
			return nil, err
		}
	}
	g.SetThreshold(cutoff)
	res.Threshold = cutoff
	res.Edges = g.EdgeCount()
	return res, nil
}

func (e *Engine) rethreshold(ctx context.Context, b *brain.Brain, req Request) (*Result, error) {
	g := b.Graph
	var current []brain.Edge
	for _, edge := range g.Edges() {
		if b.Matrix.Excluded(edge.From) || b.Matrix.Excluded(edge.To) {
			continue
		}
		current = append(current, edge)
	}

	k, hasTarget, err := req.target(b.PossibleEdges())
	if err != nil {
		return nil, err
	}
	if hasTarget && k > len(current) {
		return nil, fmt.Errorf("rethreshold to %d edges but graph holds %d: %w", k, len(current), brain.ErrInput)
	}

	res := &Result{Mode: "rethreshold", Target: -1}
	kept, cutoff, err := e.selectEdges(ctx, g.Nodes(), current, req, k, hasTarget, res)
	if err != nil {
		return nil, err
	}

	keep := make(map[brain.Key]bool, len(kept))
	for _, edge := range kept {
		keep[g.Key(edge.From, edge.To)] = true
	}
	for _, edge := range g.Edges() {
		if !keep[g.Key(edge.From, edge.To)] {
			g.RemoveEdge(edge.From, edge.To)
		}
	}
	if cutoff > g.Threshold() {
		g.SetThreshold(cutoff)
	}
	res.Threshold = g.Threshold()
	res.Edges = g.EdgeCount()
	return res, nil
}

// selectEdges picks the retained edges from candidates (row-major order) and
// returns them with the cutoff. Retained edges always weigh at least as much
// as discarded ones, forest edges aside.
func (e *Engine) selectEdges(ctx context.Context, nodes []int, candidates []brain.Edge, req Request, k int, hasTarget bool, res *Result) ([]brain.Edge, float64, error) {
	var forest []brain.Edge
	inForest := make(map[brain.Key]bool)
	if req.KeepSpanningTree {
		var err error
		forest, err = spanning.Edges(ctx, nodes, candidates, spanning.WithOrder(req.SpanningOrder))
		if err != nil {
			return nil, 0, err
		}
		for _, edge := range forest {
			inForest[brain.Key{From: edge.From, To: edge.To}] = true
		}
		res.ForestEdges = len(forest)
	}

	rest := make([]brain.Edge, 0, len(candidates))
	for _, edge := range candidates {
		if !inForest[undirectedKey(edge)] || !req.KeepSpanningTree {
			rest = append(rest, edge)
		}
	}

	kept := append([]brain.Edge(nil), forest...)
	switch {
	case hasTarget:
		res.Target = k
		sortDescending(rest)
		budget := k - len(forest)
		if budget < 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("requested %d edges but the spanning forest already holds %d", k, len(forest)))
			e.logger.Warn().Int("target", k).Int("forest_edges", len(forest)).Msg("Edge target below spanning forest size, keeping forest only")
			budget = 0
		}
		if budget > len(rest) {
			res.Shortfall = budget - len(rest)
			res.Warnings = append(res.Warnings, fmt.Sprintf("only %d eligible edges for a target of %d", len(forest)+len(rest), k))
			e.logger.Warn().Int("target", k).Int("eligible", len(forest)+len(rest)).Msg("Not enough eligible edges")
			budget = len(rest)
		}
		kept = append(kept, rest[:budget]...)
		if budget < len(rest) {
			return kept, rest[budget].Weight, nil
		}
		return kept, brain.Unthresholded, nil

	case req.Value != nil:
		for _, edge := range rest {
			if edge.Weight > *req.Value {
				kept = append(kept, edge)
			}
		}
		return kept, *req.Value, nil

	default:
		return append(kept, rest...), brain.Unthresholded, nil
	}
}

func (e *Engine) local(ctx context.Context, b *brain.Brain, req Request) (*Result, error) {
	g := b.Graph
	if g.Directed() {
		return nil, fmt.Errorf("local thresholding of a directed graph: %w", brain.ErrStructural)
	}
	k, hasTarget, err := req.target(b.PossibleEdges())
	if err != nil {
		return nil, err
	}
	if !hasTarget {
		return nil, fmt.Errorf("local thresholding needs an edge percentage or count: %w", brain.ErrInput)
	}

	nodes := g.Nodes()
	forest, err := spanning.Edges(ctx, nodes, b.Candidates(), spanning.WithOrder(req.SpanningOrder))
	if err != nil {
		return nil, err
	}
	res := &Result{Mode: "local", Target: k, ForestEdges: len(forest), Threshold: brain.Unthresholded}

	kept := append([]brain.Edge(nil), forest...)
	present := make(map[brain.Key]bool, k)
	for _, edge := range forest {
		present[brain.Key{From: edge.From, To: edge.To}] = true
	}

	if k < len(forest) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("requested %d edges but the spanning forest already holds %d", k, len(forest)))
		e.logger.Warn().Int("target", k).Int("forest_edges", len(forest)).Msg("Edge target below spanning forest size, keeping forest only")
	}

	ranked := rankNeighbours(b, nodes)
	maxDegree := 0
	for _, r := range ranked {
		if len(r) > maxDegree {
			maxDegree = len(r)
		}
	}

	for nn := 1; len(kept) < k; nn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nn > maxDegree {
			res.Shortfall = k - len(kept)
			res.Warnings = append(res.Warnings, fmt.Sprintf("nearest-neighbour growth exhausted at %d of %d edges", len(kept), k))
			e.logger.Warn().Int("target", k).Int("edges", len(kept)).Msg("No candidate edges remain")
			break
		}

		var fresh []brain.Edge
		for _, i := range nodes {
			for idx, j := range ranked[i] {
				if idx >= nn {
					break
				}
				key := g.Key(i, j)
				if present[key] {
					continue
				}
				w, _ := b.PairWeight(key.From, key.To)
				present[key] = true
				fresh = append(fresh, brain.Edge{From: key.From, To: key.To, Weight: w})
			}
		}
		sort.SliceStable(fresh, func(a, c int) bool {
			if fresh[a].From != fresh[c].From {
				return fresh[a].From < fresh[c].From
			}
			return fresh[a].To < fresh[c].To
		})
		sortDescending(fresh)

		for _, edge := range fresh {
			if len(kept) >= k {
				break
			}
			kept = append(kept, edge)
		}
		e.logger.Debug().Int("k", nn).Int("edges", len(kept)).Msg("Nearest-neighbour round")
	}

	g.ClearEdges()
	for _, edge := range kept {
		if err := g.AddEdge(edge.From, edge.To, edge.Weight); err != nil {
			return nil, err
		}
	}
	g.SetThreshold(brain.Unthresholded)
	res.Edges = g.EdgeCount()
	return res, nil
}

// rankNeighbours lists, per node, the other live nodes ordered by the node's
// own matrix row, strongest first. Ties keep ascending id order.
func rankNeighbours(b *brain.Brain, nodes []int) map[int][]int {
	ranked := make(map[int][]int, len(nodes))
	for _, i := range nodes {
		var row []brain.Edge
		for _, j := range nodes {
			if w, ok := b.Matrix.Value(i, j); ok {
				row = append(row, brain.Edge{From: i, To: j, Weight: w})
			}
		}
		sortDescending(row)
		ids := make([]int, len(row))
		for idx, edge := range row {
			ids[idx] = edge.To
		}
		ranked[i] = ids
	}
	return ranked
}

func sortDescending(edges []brain.Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
}

func undirectedKey(e brain.Edge) brain.Key {
	if e.To < e.From {
		return brain.Key{From: e.To, To: e.From}
	}
	return brain.Key{From: e.From, To: e.To}
}

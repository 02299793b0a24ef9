package brain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Unthresholded is the threshold of a graph whose edges were not filtered by
// weight. No weight is ever below it.
var Unthresholded = math.Inf(-1)

// IsUnthresholded reports whether t is the fully connected sentinel.
func IsUnthresholded(t float64) bool { return math.IsInf(t, -1) }

// Node is a brain region.
type Node struct {
	ID           int
	Label        string
	Coord        *r3.Vec
	Props        Properties
	Degenerating bool

	module    int
	hasModule bool
	hubScore  float64
	hasHub    bool
}

// Module returns the node's module id once communities have been detected.
func (n *Node) Module() (int, bool) { return n.module, n.hasModule }

// SetModule records the node's module assignment.
func (n *Node) SetModule(m int) { n.module, n.hasModule = m, true }

// ClearModule removes any module assignment.
func (n *Node) ClearModule() { n.module, n.hasModule = 0, false }

// HubScore returns the composite centrality score once hubs were identified.
func (n *Node) HubScore() (float64, bool) { return n.hubScore, n.hasHub }

// SetHubScore records the composite centrality score.
func (n *Node) SetHubScore(s float64) { n.hubScore, n.hasHub = s, true }

func (n *Node) clone() *Node {
	c := *n
	if n.Coord != nil {
		v := *n.Coord
		c.Coord = &v
	}
	c.Props = n.Props.clone()
	return &c
}

// Edge is a weighted link. For undirected graphs From < To.
type Edge struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// Key identifies an edge independent of its weight.
type Key struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Graph holds nodes and weighted edges. Iteration is deterministic: nodes in
// ascending id order, edges in row-major (from, to) order.
type Graph struct {
	directed  bool
	nodes     map[int]*Node
	out       map[int]map[int]float64
	in        map[int]map[int]float64
	edgeCount int
	threshold float64
}

// NewGraph creates an empty graph. The directed flag is fixed for its lifetime.
func NewGraph(directed bool) *Graph {
	return &Graph{
		directed:  directed,
		nodes:     make(map[int]*Node),
		out:       make(map[int]map[int]float64),
		in:        make(map[int]map[int]float64),
		threshold: Unthresholded,
	}
}

func (g *Graph) Directed() bool { return g.directed }

// Threshold is the weight cutoff that produced the current edge set.
func (g *Graph) Threshold() float64 { return g.threshold }

func (g *Graph) SetThreshold(t float64) { g.threshold = t }

// Key normalizes an endpoint pair for this graph's orientation.
func (g *Graph) Key(u, v int) Key {
	if !g.directed && v < u {
		u, v = v, u
	}
	return Key{From: u, To: v}
}

// AddNode adds a node with the given id, returning the existing one if present.
func (g *Graph) AddNode(id int) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id}
	g.nodes[id] = n
	g.out[id] = make(map[int]float64)
	if g.directed {
		g.in[id] = make(map[int]float64)
	}
	return n
}

func (g *Graph) Node(id int) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) HasNode(id int) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

// Nodes returns node ids in ascending order.
func (g *Graph) Nodes() []int {
	ids := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id int) {
	if !g.HasNode(id) {
		return
	}
	for _, nb := range g.Neighbors(id) {
		g.RemoveEdge(id, nb)
		if g.directed {
			g.RemoveEdge(nb, id)
		}
	}
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)
}

// AddEdge inserts or overwrites the edge u-v.
func (g *Graph) AddEdge(u, v int, w float64) error {
	if u == v {
		return fmt.Errorf("self loop on node %d: %w", u, ErrInput)
	}
	if !g.HasNode(u) || !g.HasNode(v) {
		return fmt.Errorf("edge %d-%d references unknown node: %w", u, v, ErrNotFound)
	}
	if math.IsNaN(w) {
		return fmt.Errorf("edge %d-%d has NaN weight: %w", u, v, ErrInput)
	}
	if _, exists := g.Weight(u, v); !exists {
		g.edgeCount++
	}
	g.out[u][v] = w
	if g.directed {
		g.in[v][u] = w
	} else {
		g.out[v][u] = w
	}
	return nil
}

// SetWeight changes the weight of an existing edge.
func (g *Graph) SetWeight(u, v int, w float64) error {
	if _, ok := g.Weight(u, v); !ok {
		return fmt.Errorf("edge %d-%d: %w", u, v, ErrNotFound)
	}
	return g.AddEdge(u, v, w)
}

// Weight returns the weight of u-v and whether the edge exists.
func (g *Graph) Weight(u, v int) (float64, bool) {
	nb, ok := g.out[u]
	if !ok {
		return 0, false
	}
	w, ok := nb[v]
	return w, ok
}

func (g *Graph) HasEdge(u, v int) bool {
	_, ok := g.Weight(u, v)
	return ok
}

// RemoveEdge deletes u-v, reporting whether it existed.
func (g *Graph) RemoveEdge(u, v int) bool {
	if !g.HasEdge(u, v) {
		return false
	}
	delete(g.out[u], v)
	if g.directed {
		delete(g.in[v], u)
	} else {
		delete(g.out[v], u)
	}
	g.edgeCount--
	return true
}

// ClearEdges removes every edge, keeping nodes and their attributes.
func (g *Graph) ClearEdges() {
	for id := range g.nodes {
		g.out[id] = make(map[int]float64)
		if g.directed {
			g.in[id] = make(map[int]float64)
		}
	}
	g.edgeCount = 0
}

func (g *Graph) EdgeCount() int { return g.edgeCount }

// Edges returns every edge in row-major order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edgeCount)
	for _, u := range g.Nodes() {
		for _, v := range sortedKeys(g.out[u]) {
			if !g.directed && v < u {
				continue
			}
			edges = append(edges, Edge{From: u, To: v, Weight: g.out[u][v]})
		}
	}
	return edges
}

// EdgesTouching returns every edge with at least one endpoint in ids, in
// row-major order and without duplicates.
func (g *Graph) EdgesTouching(ids []int) []Edge {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var edges []Edge
	for _, e := range g.Edges() {
		if set[e.From] || set[e.To] {
			edges = append(edges, e)
		}
	}
	return edges
}

// Neighbors returns the ids directly linked to id in either direction.
func (g *Graph) Neighbors(id int) []int {
	if !g.directed {
		return sortedKeys(g.out[id])
	}
	seen := make(map[int]float64, len(g.out[id])+len(g.in[id]))
	for v := range g.out[id] {
		seen[v] = 0
	}
	for v := range g.in[id] {
		seen[v] = 0
	}
	return sortedKeys(seen)
}

// Degree is the number of directly linked nodes.
func (g *Graph) Degree(id int) int { return len(g.Neighbors(id)) }

// Strength is the sum of weights of edges touching id.
func (g *Graph) Strength(id int) float64 {
	s := 0.0
	for _, w := range g.out[id] {
		s += w
	}
	if g.directed {
		for _, w := range g.in[id] {
			s += w
		}
	}
	return s
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := NewGraph(g.directed)
	c.threshold = g.threshold
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
		c.out[id] = make(map[int]float64, len(g.out[id]))
		for v, w := range g.out[id] {
			c.out[id][v] = w
		}
		if g.directed {
			c.in[id] = make(map[int]float64, len(g.in[id]))
			for v, w := range g.in[id] {
				c.in[id][v] = w
			}
		}
	}
	c.edgeCount = g.edgeCount
	return c
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

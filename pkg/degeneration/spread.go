package degeneration

import (
	"fmt"
	"math/rand"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// RandomRemove deletes up to n edges chosen uniformly at random and keeps the
// matrix in step. It returns how many edges were removed.
func RandomRemove(b *brain.Brain, n int, rng *rand.Rand) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative edge count %d: %w", n, brain.ErrInput)
	}
	edges := b.Graph.Edges()
	if n > len(edges) {
		n = len(edges)
	}
	rng.Shuffle(len(edges), func(i, j int) { edges[i], edges[j] = edges[j], edges[i] })
	for _, e := range edges[:n] {
		b.Graph.RemoveEdge(e.From, e.To)
		b.RefreshEdge(e.From, e.To)
	}
	return n, nil
}

// ContiguousSpread grows a toxic region through the graph. Each step picks a
// random toxic node and infects one of its healthy neighbours at random. With
// no start nodes a random node seeds the region. Spreading stops early when
// the region has no healthy neighbours left. Toxic nodes are flagged as
// degenerating.
func ContiguousSpread(b *brain.Brain, start []int, steps int, rng *rand.Rand) ([]int, error) {
	g := b.Graph
	if steps < 0 {
		return nil, fmt.Errorf("negative step count %d: %w", steps, brain.ErrInput)
	}
	for _, id := range start {
		if !g.HasNode(id) {
			return nil, fmt.Errorf("start node %d not in graph: %w", id, brain.ErrInput)
		}
	}

	var toxic []int
	seen := make(map[int]bool)
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			toxic = append(toxic, id)
		}
	}
	if len(start) == 0 {
		nodes := g.Nodes()
		if len(nodes) == 0 {
			return nil, fmt.Errorf("spread on an empty graph: %w", brain.ErrStructural)
		}
		add(nodes[rng.Intn(len(nodes))])
	}
	for _, id := range start {
		add(id)
	}

	for s := 0; s < steps; s++ {
		var frontier []int
		for _, id := range toxic {
			for _, nb := range g.Neighbors(id) {
				if !seen[nb] {
					frontier = append(frontier, id)
					break
				}
			}
		}
		if len(frontier) == 0 {
			break
		}
		src := frontier[rng.Intn(len(frontier))]
		var healthy []int
		for _, nb := range g.Neighbors(src) {
			if !seen[nb] {
				healthy = append(healthy, nb)
			}
		}
		add(healthy[rng.Intn(len(healthy))])
	}

	for _, id := range toxic {
		n, _ := g.Node(id)
		n.Degenerating = true
	}
	return toxic, nil
}

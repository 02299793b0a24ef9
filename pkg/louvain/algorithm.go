// Package louvain partitions a brain network into modules by multi-level
// greedy modularity optimisation on the masked weight matrix.
package louvain

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/utils"
)

// Community represents the partition state of one level.
type Community struct {
	NodeToCommunity      []int      // NodeToCommunity[i] = module of node i
	CommunityWeights     []float64  // CommunityWeights[c] = summed degree of module c
	NodeCommunityWeights *mat.Dense // NodeCommunityWeights.At(i, c) = weight from node i into module c
	NumCommunities       int
}

// NewCommunity initializes each node in its own community
func NewCommunity(graph *Graph) *Community {
	n := graph.NumNodes
	comm := &Community{
		NodeToCommunity:      make([]int, n),
		CommunityWeights:     make([]float64, n),
		NodeCommunityWeights: mat.DenseCopyOf(graph.Weights),
		NumCommunities:       n,
	}
	for i := 0; i < n; i++ {
		comm.NodeToCommunity[i] = i
		comm.CommunityWeights[i] = graph.Degrees[i]
	}
	return comm
}

// CalculateModularity computes Newman's modularity of the current partition
func CalculateModularity(graph *Graph, comm *Community) float64 {
	if graph.TotalWeight == 0 {
		return 0.0
	}
	s := graph.TotalWeight
	internal := make([]float64, comm.NumCommunities)
	for i := 0; i < graph.NumNodes; i++ {
		c := comm.NodeToCommunity[i]
		internal[c] += comm.NodeCommunityWeights.At(i, c)
	}

	q := 0.0
	for c := 0; c < comm.NumCommunities; c++ {
		k := comm.CommunityWeights[c] / s
		q += internal[c]/s - k*k
	}
	return q
}

// CalculateModularityGain is the change in modularity (scaled by the total
// weight) from moving node into targetComm.
func CalculateModularityGain(graph *Graph, comm *Community, node, targetComm int) float64 {
	current := comm.NodeToCommunity[node]
	if targetComm == current {
		return 0
	}
	k := graph.Degrees[node]
	knm := comm.NodeCommunityWeights
	return (knm.At(node, targetComm) - knm.At(node, current) + graph.Weights.At(node, node)) -
		k*(comm.CommunityWeights[targetComm]-comm.CommunityWeights[current]+k)/graph.TotalWeight
}

// MoveNode moves a node to a different community, updating module degrees
// and node-to-module weights in place.
func MoveNode(graph *Graph, comm *Community, node, oldComm, newComm int) {
	if oldComm == newComm {
		return
	}
	k := graph.Degrees[node]
	knm := comm.NodeCommunityWeights
	for r := 0; r < graph.NumNodes; r++ {
		w := graph.Weights.At(r, node)
		if w == 0 {
			continue
		}
		knm.Set(r, newComm, knm.At(r, newComm)+w)
		knm.Set(r, oldComm, knm.At(r, oldComm)-w)
	}
	comm.CommunityWeights[newComm] += k
	comm.CommunityWeights[oldComm] -= k
	comm.NodeToCommunity[node] = newComm
}

// OneLevel sweeps nodes in random order, moving each to the module with the
// largest positive gain, until a sweep makes no move.
func OneLevel(ctx context.Context, graph *Graph, comm *Community, config *Config, rng *rand.Rand, logger zerolog.Logger, tracker *utils.MoveTracker, level int) (moves, sweeps int, err error) {
	minGain := config.MinGain()
	maxSweeps := config.MaxSweeps()

	for sweeps < maxSweeps {
		if err := ctx.Err(); err != nil {
			return moves, sweeps, err
		}
		sweeps++
		sweepMoves := 0

		for _, node := range rng.Perm(graph.NumNodes) {
			oldComm := comm.NodeToCommunity[node]
			bestComm, bestGain := oldComm, 0.0
			for c := 0; c < comm.NumCommunities; c++ {
				if gain := CalculateModularityGain(graph, comm, node, c); gain > bestGain {
					bestComm, bestGain = c, gain
				}
			}
			if bestComm == oldComm || bestGain <= minGain {
				continue
			}
			MoveNode(graph, comm, node, oldComm, bestComm)
			sweepMoves++
			if tracker != nil {
				tracker.LogMove(level, node, oldComm, bestComm, bestGain/graph.TotalWeight, CalculateModularity(graph, comm))
			}
		}
		moves += sweepMoves

		if config.EnableProgress() {
			logger.Info().
				Int("sweep", sweeps).
				Int("moves", sweepMoves).
				Float64("modularity", CalculateModularity(graph, comm)).
				Msg("Local optimization progress")
		}
		if sweepMoves == 0 {
			logger.Debug().Int("sweep", sweeps).Msg("Converged: no moves")
			return moves, sweeps, nil
		}
	}

	logger.Warn().Int("max_sweeps", maxSweeps).Msg("Sweep limit reached before convergence")
	return moves, sweeps, nil
}

// Relabel maps module ids onto 0..k-1 preserving their order, returning the
// per-node labels and k.
func Relabel(comm *Community) ([]int, int) {
	used := make(map[int]bool)
	for _, c := range comm.NodeToCommunity {
		used[c] = true
	}
	ids := make([]int, 0, len(used))
	for c := range used {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	dense := make(map[int]int, len(ids))
	for i, c := range ids {
		dense[c] = i
	}
	labels := make([]int, len(comm.NodeToCommunity))
	for i, c := range comm.NodeToCommunity {
		labels[i] = dense[c]
	}
	return labels, len(ids)
}

// AggregateGraph collapses every module into a super-node. Super-node weights
// sum all entries between (and inside) the modules.
func AggregateGraph(graph *Graph, labels []int, k int) *Graph {
	w := mat.NewDense(k, k, nil)
	for i := 0; i < graph.NumNodes; i++ {
		for j := 0; j < graph.NumNodes; j++ {
			v := graph.Weights.At(i, j)
			if v == 0 {
				continue
			}
			a, c := labels[i], labels[j]
			w.Set(a, c, w.At(a, c)+v)
		}
	}
	return NewGraph(w, nil)
}

// RunOption customises Run.
type RunOption func(*runOptions)

type runOptions struct {
	rng     *rand.Rand
	logger  *zerolog.Logger
	tracker *utils.MoveTracker
}

// WithRand injects the random source used for node visitation order.
func WithRand(rng *rand.Rand) RunOption { return func(o *runOptions) { o.rng = rng } }

// WithLogger overrides the config-created logger.
func WithLogger(l zerolog.Logger) RunOption { return func(o *runOptions) { o.logger = &l } }

// WithMoveTracker records every node move.
func WithMoveTracker(t *utils.MoveTracker) RunOption { return func(o *runOptions) { o.tracker = t } }

// Run executes the multi-level optimisation. It stops at the first level whose
// modularity does not exceed the previous one and returns the previous level.
func Run(ctx context.Context, graph *Graph, config *Config, opts ...RunOption) (*Result, error) {
	startTime := time.Now()
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := config.CreateLogger()
	if o.logger != nil {
		logger = *o.logger
	}
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(config.RandomSeed()))
	}

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if config.MaxLevels() < 1 {
		return nil, fmt.Errorf("max_levels %d: %w", config.MaxLevels(), brain.ErrInput)
	}

	logger.Info().
		Int("nodes", graph.NumNodes).
		Float64("total_weight", graph.TotalWeight).
		Msg("Starting modularity optimisation")

	result := &Result{
		Levels:     make([]LevelInfo, 0),
		Statistics: Statistics{LevelStats: make([]LevelStats, 0)},
	}

	assignments := make([]int, graph.NumNodes)
	for i := range assignments {
		assignments[i] = i
	}
	current := graph
	prevQ := -1.0

	for level := 1; level <= config.MaxLevels(); level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		levelStart := time.Now()

		comm := NewCommunity(current)
		initialQ := CalculateModularity(current, comm)
		moves, sweeps, err := OneLevel(ctx, current, comm, config, rng, logger, o.tracker, level)
		if err != nil {
			return nil, fmt.Errorf("local optimization failed at level %d: %w", level, err)
		}

		labels, k := Relabel(comm)
		next := AggregateGraph(current, labels, k)
		q := next.Modularity()
		accepted := level == 1 || q > prevQ

		result.Statistics.TotalSweeps += sweeps
		result.Statistics.TotalMoves += moves
		result.Statistics.LevelStats = append(result.Statistics.LevelStats, LevelStats{
			Level:             level,
			Nodes:             current.NumNodes,
			Sweeps:            sweeps,
			Moves:             moves,
			InitialModularity: initialQ,
			FinalModularity:   q,
			Accepted:          accepted,
			RuntimeMS:         time.Since(levelStart).Milliseconds(),
		})

		if !accepted {
			logger.Info().Int("level", level).Float64("modularity", q).Msg("No improvement, stopping")
			break
		}

		for i := range assignments {
			assignments[i] = labels[assignments[i]]
		}
		result.Levels = append(result.Levels, newLevelInfo(level, graph, assignments, k, q, moves, time.Since(levelStart)))
		prevQ = q
		current = next

		logger.Info().
			Int("level", level).
			Int("communities", k).
			Float64("modularity", q).
			Msg("Level complete")

		if k == 1 {
			break
		}
	}

	final := result.Levels[len(result.Levels)-1]
	result.NumLevels = len(result.Levels)
	result.Modularity = final.Modularity
	result.FinalCommunities = make(map[int]int, graph.NumNodes)
	for i, c := range final.Assignments {
		result.FinalCommunities[graph.Nodes[i]] = c
	}
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Info().
		Int("levels", result.NumLevels).
		Float64("final_modularity", result.Modularity).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Modularity optimisation completed")

	return result, nil
}

func newLevelInfo(level int, graph *Graph, assignments []int, k int, q float64, moves int, elapsed time.Duration) LevelInfo {
	info := LevelInfo{
		Level:          level,
		Assignments:    append([]int(nil), assignments...),
		Communities:    make(map[int][]int, k),
		Modularity:     q,
		NumCommunities: k,
		NumMoves:       moves,
		RuntimeMS:      elapsed.Milliseconds(),
	}
	for i, c := range assignments {
		info.Communities[c] = append(info.Communities[c], graph.Nodes[i])
	}
	return info
}

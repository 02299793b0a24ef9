package louvain

import (
	"context"
	"fmt"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/utils"
)

// Detect runs the optimiser on a brain and records the partition on its
// nodes and Q on the brain. Masked live nodes take no part in the
// optimisation; each receives its own module, numbered after the detected
// ones, so every live node ends up assigned.
func Detect(ctx context.Context, b *brain.Brain, config *Config, opts ...RunOption) (*Result, error) {
	graph, masked, err := FromBrain(b, config.Source(), config.Diagonal())
	if err != nil {
		return nil, err
	}

	if config.EnableMoveTracking() {
		tracker, err := utils.CreateMoveTracker(config.TrackingOutputFile(), "louvain")
		if err != nil {
			return nil, fmt.Errorf("move tracking: %w", err)
		}
		defer tracker.Close()
		opts = append(opts, WithMoveTracker(tracker))
	}

	result, err := Run(ctx, graph, config, opts...)
	if err != nil {
		return nil, err
	}

	modules := 0
	for id, c := range result.FinalCommunities {
		n, _ := b.Graph.Node(id)
		n.SetModule(c)
		if c+1 > modules {
			modules = c + 1
		}
	}
	for _, id := range masked {
		n, _ := b.Graph.Node(id)
		n.SetModule(modules)
		modules++
	}
	result.Excluded = masked
	b.SetModularity(result.Modularity)
	return result, nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-service/pkg/degeneration"
	"github.com/gilchrisn/connectome-service/pkg/threshold"
)

var degenerateCmd = &cobra.Command{
	Use:   "degenerate",
	Short: "Threshold the matrix, then weaken edges around toxic nodes",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return v.BindPFlags(cmd.Flags())
	},
	RunE: runDegenerate,
}

var robustnessCmd = &cobra.Command{
	Use:   "robustness",
	Short: "Estimate the fraction of random node loss that fragments the graph",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return v.BindPFlags(cmd.Flags())
	},
	RunE: runRobustness,
}

func init() {
	f := degenerateCmd.Flags()
	addThresholdFlags(f)
	def := degeneration.DefaultRequest()
	f.IntSlice("toxic", nil, "toxic node ids (default all nodes)")
	f.Float64("weight-loss", def.WeightLoss, "weight removed per step")
	f.Int("edges-removed", def.EdgesRemovedLimit, "stop after removing this many edges")
	f.Float64("weight-loss-limit", 0, "stop after removing this much weight")
	f.Float64("percent-limit", 0, "stop when the graph reaches this fraction of possible edges")
	f.Float64("threshold-limit", 0, "stop at the connectivity this threshold would give")
	f.Bool("spread", false, "endpoints of strong weakened edges become toxic")
	f.Float64("spread-threshold", 0, "weight above which spreading happens")
	f.Bool("spatial-search", false, "add the nearest node when no edge is at risk")
	f.Bool("record-lengths", false, "record the length of removed edges")
	f.Int("contiguous", 0, "grow the toxic set this many steps along edges first")
	f.Int("random-remove", 0, "remove this many random edges first")

	r := robustnessCmd.Flags()
	addThresholdFlags(r)
	r.Int("iterations", 10, "random removal orders to average")
	r.Int("window", 5, "running mean width")
}

type degenerateReport struct {
	Threshold     *threshold.Result    `yaml:"threshold"`
	RandomRemoved int                  `yaml:"random_removed,omitempty"`
	Result        *degeneration.Result `yaml:"result"`
	EdgesLeft     int                  `yaml:"edges_left"`
	Connectivity  float64              `yaml:"connectivity"`
}

func runDegenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := loadBrain()
	if err != nil {
		return err
	}
	req, err := thresholdRequest()
	if err != nil {
		return err
	}
	tres, err := threshold.NewEngine(logger).Apply(ctx, b, req)
	if err != nil {
		return err
	}

	rng := newRand()
	report := degenerateReport{Threshold: tres}
	if n := v.GetInt("random-remove"); n > 0 {
		if report.RandomRemoved, err = degeneration.RandomRemove(b, n, rng); err != nil {
			return err
		}
	}

	dreq := degenerationRequest()
	if steps := v.GetInt("contiguous"); steps > 0 {
		if dreq.ToxicNodes, err = degeneration.ContiguousSpread(b, dreq.ToxicNodes, steps, rng); err != nil {
			return err
		}
	}

	res, err := degeneration.NewSimulator(rng, logger).Run(ctx, b, dreq)
	if err != nil {
		return err
	}
	report.Result = res
	report.EdgesLeft = b.Graph.EdgeCount()
	report.Connectivity = b.PercentConnected()
	return writeReport(report)
}

func degenerationRequest() degeneration.Request {
	req := degeneration.DefaultRequest()
	req.ToxicNodes = v.GetIntSlice("toxic")
	req.WeightLoss = v.GetFloat64("weight-loss")
	req.EdgesRemovedLimit = v.GetInt("edges-removed")
	if v.IsSet("weight-loss-limit") {
		req.WeightLossLimit = threshold.Ptr(v.GetFloat64("weight-loss-limit"))
	}
	if v.IsSet("percent-limit") {
		req.PercentLimit = threshold.Ptr(v.GetFloat64("percent-limit"))
	}
	if v.IsSet("threshold-limit") {
		req.ThresholdLimit = threshold.Ptr(v.GetFloat64("threshold-limit"))
	}
	req.Spread = v.GetBool("spread")
	req.SpreadThreshold = v.GetFloat64("spread-threshold")
	req.SpatialSearch = v.GetBool("spatial-search")
	req.RecordLengths = v.GetBool("record-lengths")
	return req
}

type robustnessReport struct {
	Nodes            int     `yaml:"nodes"`
	Edges            int     `yaml:"edges"`
	Iterations       int     `yaml:"iterations"`
	CriticalFraction float64 `yaml:"critical_fraction"`
}

func runRobustness(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := loadBrain()
	if err != nil {
		return err
	}
	req, err := thresholdRequest()
	if err != nil {
		return err
	}
	if _, err := threshold.NewEngine(logger).Apply(ctx, b, req); err != nil {
		return err
	}
	fc, err := degeneration.Robustness(ctx, b.Graph, v.GetInt("iterations"), v.GetInt("window"), newRand())
	if err != nil {
		return err
	}
	return writeReport(robustnessReport{
		Nodes:            b.Graph.NodeCount(),
		Edges:            b.Graph.EdgeCount(),
		Iterations:       v.GetInt("iterations"),
		CriticalFraction: fc,
	})
}

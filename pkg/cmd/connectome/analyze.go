package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/hubs"
	"github.com/gilchrisn/connectome-service/pkg/louvain"
	"github.com/gilchrisn/connectome-service/pkg/spanning"
	"github.com/gilchrisn/connectome-service/pkg/threshold"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Threshold the matrix, then detect modules and hubs",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return v.BindPFlags(cmd.Flags())
	},
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	addThresholdFlags(f)
	f.Bool("modules", true, "detect modules")
	f.String("louvain-config", "", "YAML file with louvain algorithm settings")
	f.String("module-source", louvain.SourceMatrix, "weights for module detection (matrix or graph)")
	f.Bool("hubs", true, "identify hubs")
	f.Bool("weighted-hubs", false, "use edge weights for centrality")
	f.Float64("sd-threshold", hubs.DefaultOptions().SDThreshold, "hub cutoff in standard deviations above the mean")
	f.Bool("pseudo-hubs", false, "select a fixed fraction of nodes as hubs")
}

type analyzeReport struct {
	Nodes      int               `yaml:"nodes"`
	Edges      int               `yaml:"edges"`
	Threshold  *threshold.Result `yaml:"threshold"`
	Modules    *moduleReport     `yaml:"modules,omitempty"`
	Hubs       *hubs.Result      `yaml:"hubs,omitempty"`
	Components int               `yaml:"components"`
	Largest    int               `yaml:"largest_component"`
}

type moduleReport struct {
	Modularity  float64     `yaml:"modularity"`
	Levels      int         `yaml:"levels"`
	Assignments map[int]int `yaml:"assignments"`
	Excluded    []int       `yaml:"excluded,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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
	report := analyzeReport{
		Nodes:      b.Graph.NodeCount(),
		Edges:      b.Graph.EdgeCount(),
		Threshold:  tres,
		Components: len(b.Graph.Components()),
		Largest:    len(b.LargestComponent()),
	}

	if v.GetBool("modules") {
		cfg := louvain.NewConfig()
		if path := v.GetString("louvain-config"); path != "" {
			if err := cfg.LoadFromFile(path); err != nil {
				return fmt.Errorf("louvain config: %w", err)
			}
		}
		cfg.Set("algorithm.source", v.GetString("module-source"))
		res, err := louvain.Detect(ctx, b, cfg, louvain.WithRand(newRand()), louvain.WithLogger(logger))
		if err != nil {
			return err
		}
		report.Modules = &moduleReport{
			Modularity:  res.Modularity,
			Levels:      res.NumLevels,
			Assignments: moduleAssignments(b),
			Excluded:    res.Excluded,
		}
	}

	if v.GetBool("hubs") {
		opts := hubs.DefaultOptions()
		opts.Weighted = v.GetBool("weighted-hubs")
		opts.SDThreshold = v.GetFloat64("sd-threshold")
		opts.Pseudo = v.GetBool("pseudo-hubs")
		res, err := hubs.Run(b, opts, logger)
		if err != nil {
			return err
		}
		report.Hubs = res
	}
	return writeReport(report)
}

func moduleAssignments(b *brain.Brain) map[int]int {
	out := make(map[int]int)
	for _, id := range b.Graph.Nodes() {
		n, _ := b.Graph.Node(id)
		if m, ok := n.Module(); ok {
			out[id] = m
		}
	}
	return out
}

type flagSet interface {
	String(name, value, usage string) *string
	Float64(name string, value float64, usage string) *float64
	Int(name string, value int, usage string) *int
	Bool(name string, value bool, usage string) *bool
}

func addThresholdFlags(f flagSet) {
	f.String("threshold-mode", threshold.Global.String(), "global or local")
	f.Float64("threshold", 0, "keep edges with weight above this value")
	f.Float64("edge-pc", 0, "keep this fraction of possible edges")
	f.Int("total-edges", 0, "keep this many edges")
	f.Bool("mst", false, "always keep a spanning forest")
	f.String("mst-order", spanning.Minimum.String(), "spanning forest order (minimum or maximum)")
}

// thresholdRequest reads the threshold flags. Unset targets stay nil.
func thresholdRequest() (threshold.Request, error) {
	mode, err := threshold.ParseMode(v.GetString("threshold-mode"))
	if err != nil {
		return threshold.Request{}, err
	}
	order, err := spanning.ParseOrder(v.GetString("mst-order"))
	if err != nil {
		return threshold.Request{}, err
	}
	req := threshold.Request{Mode: mode, KeepSpanningTree: v.GetBool("mst"), SpanningOrder: order}
	if v.IsSet("threshold") {
		req.Value = threshold.Ptr(v.GetFloat64("threshold"))
	}
	if v.IsSet("edge-pc") {
		req.EdgePercent = threshold.Ptr(v.GetFloat64("edge-pc"))
	}
	if v.IsSet("total-edges") {
		req.TotalEdges = threshold.Ptr(v.GetInt("total-edges"))
	}
	return req, nil
}

// Command connectome runs brain-network analyses from the command line:
// thresholding, community detection, hub identification, degeneration
// and robustness estimates over a connectivity matrix.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/dataset"
)

var (
	v      = viper.New()
	logger zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "connectome",
		Short: "Analyse brain connectivity networks",
		Long: `connectome loads a connectivity matrix (plain text, edge list, YAML
or JSON), builds a thresholded graph from it and runs network analyses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", path, err)
				}
			}
			level, err := zerolog.ParseLevel(v.GetString("log-level"))
			if err != nil {
				level = zerolog.InfoLevel
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
				Level(level).With().Timestamp().Str("service", "connectome").Logger()
			return nil
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file with flag defaults")
	pf.String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	pf.StringP("input", "i", "", "matrix file (.txt, .edges, .yaml or .json)")
	pf.Bool("directed", false, "treat the matrix as directed")
	pf.String("spatial", "", "node coordinate file (label x y z per row)")
	pf.Bool("mni", false, "convert MNI coordinates to template voxels")
	pf.StringSlice("properties", nil, "node property files")
	pf.IntSlice("exclude", nil, "node ids to mask out of analyses")
	pf.StringP("output", "o", "", "write the YAML report here instead of stdout")
	pf.Int64("seed", 0, "random seed (0 picks one from the clock)")
	_ = v.BindPFlags(pf)

	v.SetEnvPrefix("CONNECTOME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(analyzeCmd, degenerateCmd, robustnessCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadBrain reads the input matrix and its side files.
func loadBrain() (*brain.Brain, error) {
	path := v.GetString("input")
	if path == "" {
		return nil, fmt.Errorf("--input is required: %w", brain.ErrInput)
	}
	b, err := dataset.Load(path, v.GetBool("directed"))
	if err != nil {
		return nil, err
	}
	if spatial := v.GetString("spatial"); spatial != "" {
		if err := dataset.LoadSpatial(b, spatial, v.GetBool("mni")); err != nil {
			return nil, err
		}
	}
	for _, p := range v.GetStringSlice("properties") {
		if err := dataset.LoadProperties(b, p); err != nil {
			return nil, err
		}
	}
	if err := b.Matrix.Exclude(v.GetIntSlice("exclude")...); err != nil {
		return nil, err
	}
	logger.Info().
		Str("input", path).
		Int("nodes", b.Graph.NodeCount()).
		Bool("directed", b.Graph.Directed()).
		Msg("Loaded matrix")
	return b, nil
}

func newRand() *rand.Rand {
	seed := v.GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Debug().Int64("seed", seed).Msg("Random source")
	return rand.New(rand.NewSource(seed))
}

func writeReport(report interface{}) error {
	var w io.Writer = os.Stdout
	if path := v.GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

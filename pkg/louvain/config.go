package louvain

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Weight sources for the optimizer.
const (
	SourceMatrix = "matrix"
	SourceGraph  = "graph"
)

// Config manages algorithm configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.max_levels", 100)
	v.SetDefault("algorithm.max_sweeps", 1000)
	v.SetDefault("algorithm.min_gain", 1e-10)
	v.SetDefault("algorithm.diagonal", 0.0)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())
	v.SetDefault("algorithm.source", SourceMatrix)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", false)

	v.SetDefault("analysis.track_moves", false)
	v.SetDefault("analysis.output_file", "moves.jsonl")

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) MaxLevels() int       { return c.v.GetInt("algorithm.max_levels") }
func (c *Config) MaxSweeps() int       { return c.v.GetInt("algorithm.max_sweeps") }
func (c *Config) MinGain() float64     { return c.v.GetFloat64("algorithm.min_gain") }
func (c *Config) Diagonal() float64    { return c.v.GetFloat64("algorithm.diagonal") }
func (c *Config) RandomSeed() int64    { return c.v.GetInt64("algorithm.random_seed") }
func (c *Config) Source() string       { return c.v.GetString("algorithm.source") }
func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Config) EnableMoveTracking() bool   { return c.v.GetBool("analysis.track_moves") }
func (c *Config) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "louvain").Logger()
}

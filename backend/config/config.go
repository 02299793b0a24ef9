package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Sessions SessionConfig
	Logging  LoggingConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type SessionConfig struct {
	MaxSessions int
	// MaxNodes bounds the matrix size accepted on upload.
	MaxNodes int
}

type LoggingConfig struct {
	Level string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from the environment (SERVER_ADDRESS,
// SESSION_MAX, LOG_LEVEL, ...), falling back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("server_address", ":8080")
	v.SetDefault("server_read_timeout", 30*time.Second)
	v.SetDefault("server_write_timeout", 5*time.Minute)
	v.SetDefault("server_shutdown_timeout", 30*time.Second)
	v.SetDefault("session_max", 64)
	v.SetDefault("session_max_nodes", 2000)
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "*")
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Address:         v.GetString("server_address"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Sessions: SessionConfig{
			MaxSessions: v.GetInt("session_max"),
			MaxNodes:    v.GetInt("session_max_nodes"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("log_level"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors_origins")),
		},
	}

	if cfg.Server.Address == "" {
		return nil, fmt.Errorf("SERVER_ADDRESS must not be empty")
	}
	if cfg.Sessions.MaxSessions < 1 {
		return nil, fmt.Errorf("SESSION_MAX must be positive, got %d", cfg.Sessions.MaxSessions)
	}
	if cfg.Sessions.MaxNodes < 1 {
		return nil, fmt.Errorf("SESSION_MAX_NODES must be positive, got %d", cfg.Sessions.MaxNodes)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

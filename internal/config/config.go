package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultPoolPath = "qiime2-pool.db"

	envPoolPath       = "QIIME2_POOL_PATH"
	envLogLevel       = "QIIME2_LOG_LEVEL"
	envParallelConfig = "QIIME2_PARALLEL_CONFIG"
)

// Config holds engine configuration loaded from environment variables.
type Config struct {
	// PoolPath is the persistent named pool database. Empty disables the
	// persistent pool entirely; only the transient process pool is used.
	PoolPath string
	// ParallelConfigPath points at the YAML parallel routing
	// configuration. Empty means parallel execution is unconfigured.
	ParallelConfigPath string
	LogLevel           slog.Level
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() Config {
	cfg := Config{
		PoolPath: defaultPoolPath,
		LogLevel: slog.LevelInfo,
	}

	if v, ok := os.LookupEnv(envPoolPath); ok {
		cfg.PoolPath = v
	}
	if v := os.Getenv(envParallelConfig); v != "" {
		cfg.ParallelConfigPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the
// configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

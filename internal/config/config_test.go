package config

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envPoolPath, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envParallelConfig, "")

	// An explicitly empty pool path disables persistence.
	cfg := Load()
	if cfg.PoolPath != "" {
		t.Errorf("empty %s should disable the pool, got %q", envPoolPath, cfg.PoolPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("default log level %v, want info", cfg.LogLevel)
	}
	if cfg.ParallelConfigPath != "" {
		t.Errorf("parallel config defaulted to %q, want empty", cfg.ParallelConfigPath)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(envPoolPath, "/tmp/custom-pool.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envParallelConfig, "/etc/qiime2/parallel.yaml")

	cfg := Load()
	if cfg.PoolPath != "/tmp/custom-pool.db" {
		t.Errorf("PoolPath = %q", cfg.PoolPath)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.ParallelConfigPath != "/etc/qiime2/parallel.yaml" {
		t.Errorf("ParallelConfigPath = %q", cfg.ParallelConfigPath)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("visible")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Error("info record emitted below the configured level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Error("warn record missing")
	}
}

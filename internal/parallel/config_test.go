package parallel_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/misialq/qiime2/internal/parallel"
)

const validConfig = `
executors:
  - name: default
    kind: threadpool
    workers: 2
  - name: heavy
    kind: processpool
    workers: 4
action_executor_mapping:
  diversity:
    core_metrics: heavy
`

func TestParseConfig(t *testing.T) {
	cfg, err := parallel.ParseConfig([]byte(validConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Executors) != 2 {
		t.Fatalf("parsed %d executors, want 2", len(cfg.Executors))
	}
	if cfg.Routing["diversity"]["core_metrics"] != "heavy" {
		t.Errorf("routing not parsed: %v", cfg.Routing)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parallel.ParseConfig([]byte(`
executors:
  - name: default
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	exec := cfg.Executors[0]
	if exec.Kind != "threadpool" {
		t.Errorf("kind default: got %q, want threadpool", exec.Kind)
	}
	if exec.Workers != 1 {
		t.Errorf("workers default: got %d, want 1", exec.Workers)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no executors", `executors: []`},
		{"empty name", "executors:\n  - kind: threadpool"},
		{"duplicate name", "executors:\n  - name: default\n  - name: default"},
		{"missing default", "executors:\n  - name: heavy"},
		{"unknown route target", `
executors:
  - name: default
action_executor_mapping:
  diversity:
    core_metrics: missing
`},
		{"malformed yaml", `executors: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parallel.ParseConfig([]byte(tt.doc)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parallel.yaml")
	if err := os.WriteFile(path, []byte(validConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := parallel.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Executors) != 2 {
		t.Errorf("loaded %d executors, want 2", len(cfg.Executors))
	}

	if _, err := parallel.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

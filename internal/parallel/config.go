// Package parallel provides the routing configuration and worker-pool
// executors used for deferred execution. A configuration names a set of
// executors and maps plugin actions onto them; unmapped actions fall back
// to the "default" executor.
package parallel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultExecutor is the route used for actions with no explicit mapping.
const DefaultExecutor = "default"

const defaultKind = "threadpool"

// ExecutorConfig declares one named executor.
type ExecutorConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Workers int    `yaml:"workers"`
}

// Config is the parallel routing configuration: the executors to run and
// the plugin → action → executor-name routing table.
type Config struct {
	Executors []ExecutorConfig             `yaml:"executors"`
	Routing   map[string]map[string]string `yaml:"action_executor_mapping"`
}

// ParseConfig decodes and validates a YAML configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse parallel config: %w", err)
	}

	if len(cfg.Executors) == 0 {
		return nil, fmt.Errorf("parallel config declares no executors")
	}

	names := make(map[string]bool, len(cfg.Executors))
	for i := range cfg.Executors {
		exec := &cfg.Executors[i]
		if exec.Name == "" {
			return nil, fmt.Errorf("executor with empty name")
		}
		if names[exec.Name] {
			return nil, fmt.Errorf("duplicate executor %q", exec.Name)
		}
		names[exec.Name] = true
		if exec.Kind == "" {
			exec.Kind = defaultKind
		}
		if exec.Workers <= 0 {
			exec.Workers = 1
		}
	}
	if !names[DefaultExecutor] {
		return nil, fmt.Errorf("parallel config must declare a %q executor", DefaultExecutor)
	}

	for plugin, actions := range cfg.Routing {
		for action, executor := range actions {
			if !names[executor] {
				return nil, fmt.Errorf("routing for %s:%s references unknown executor %q",
					plugin, action, executor)
			}
		}
	}
	return &cfg, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parallel config: %w", err)
	}
	return ParseConfig(data)
}

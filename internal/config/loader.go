package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a generator configuration from the given YAML file
// path. After parsing, it fills in defaults for anything unset.
func Load(path string) (*GeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg GeneratorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./swetask.yaml, ~/.swetask/config.yaml.
// When none exists it returns the built-in defaults.
func LoadDefault() (*GeneratorConfig, error) {
	candidates := []string{"swetask.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".swetask", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &GeneratorConfig{}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in anything the file left unset.
func applyDefaults(cfg *GeneratorConfig) {
	g := &cfg.Generator

	if g.Workdir == "" || g.TasksDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			if g.Workdir == "" {
				g.Workdir = filepath.Join(home, ".swetask", "work")
			}
			if g.TasksDir == "" {
				g.TasksDir = filepath.Join(home, ".swetask", "tasks")
			}
		}
	}

	if g.Actor.Model == "" {
		g.Actor.Model = "gpt-4o"
	}
	if g.Actor.APIKeyEnv == "" {
		g.Actor.APIKeyEnv = "OPENAI_API_KEY"
	}
	if g.Actor.MaxTokens <= 0 {
		g.Actor.MaxTokens = 8192
	}
	if g.Actor.MaxTurns <= 0 {
		g.Actor.MaxTurns = 30
	}
	if len(g.Actor.NudgeTurns) == 0 {
		g.Actor.NudgeTurns = []int{10, 20}
	}

	if g.Timeouts.Exec == "" {
		g.Timeouts.Exec = "2m"
	}
	if g.Timeouts.Validation == "" {
		g.Timeouts.Validation = "5m"
	}
}

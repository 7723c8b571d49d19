package config

import "time"

// GeneratorConfig is the top-level configuration structure parsed from
// swetask YAML.
type GeneratorConfig struct {
	Generator Generator `yaml:"generator"`
}

// Generator defines the full generator: workspace locations, the actor,
// timeouts, and the classification and screening policies.
type Generator struct {
	Workdir  string   `yaml:"workdir"`   // scratch checkouts, defaults to ~/.swetask/work
	TasksDir string   `yaml:"tasks_dir"` // accepted task artifacts, defaults to ~/.swetask/tasks
	StoreDSN string   `yaml:"store_dsn"` // sqlite path or postgres:// URL
	Actor    Actor    `yaml:"actor"`
	Timeouts Timeouts `yaml:"timeouts"`
	Classify Classify `yaml:"classify"`
	Screen   Screen   `yaml:"screen"`
}

// Actor configures the proposing model.
type Actor struct {
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"` // env var holding the key, defaults to OPENAI_API_KEY
	MaxTokens  int    `yaml:"max_tokens"`
	MaxTurns   int    `yaml:"max_turns"`
	NudgeTurns []int  `yaml:"nudge_turns"`
}

// Timeouts are duration strings, e.g. "2m" or "300s".
type Timeouts struct {
	Exec       string `yaml:"exec"`       // exploration commands, default 2m
	Validation string `yaml:"validation"` // each oracle run during validation, default 5m
}

// Classify tunes the diff partitioning policy.
type Classify struct {
	TestPatterns   []string `yaml:"test_patterns"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	PreferFix      bool     `yaml:"prefer_fix"` // files matching both patterns go to the fix side
}

// Screen extends the static script screen.
type Screen struct {
	ExtraRunners []string `yaml:"extra_runners"`
}

// ExecTimeout returns the parsed exploration timeout.
func (g *Generator) ExecTimeout() time.Duration {
	return parseDuration(g.Timeouts.Exec, 2*time.Minute)
}

// ValidationTimeout returns the parsed per-run validation timeout.
func (g *Generator) ValidationTimeout() time.Duration {
	return parseDuration(g.Timeouts.Validation, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

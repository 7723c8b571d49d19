package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swetask.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const fullConfig = `
generator:
  workdir: /tmp/swetask-work
  tasks_dir: /tmp/swetask-tasks
  store_dsn: /tmp/swetask.db
  actor:
    model: gpt-4o-mini
    max_tokens: 4096
    max_turns: 20
    nudge_turns: [8, 15]
  timeouts:
    exec: 90s
    validation: 10m
  classify:
    test_patterns: [test, spec]
    ignore_patterns: [changelog, docs/]
    prefer_fix: true
  screen:
    extra_runners: ["bazel test"]
`

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := cfg.Generator
	if g.Actor.Model != "gpt-4o-mini" || g.Actor.MaxTurns != 20 {
		t.Errorf("actor = %+v", g.Actor)
	}
	if len(g.Actor.NudgeTurns) != 2 || g.Actor.NudgeTurns[0] != 8 {
		t.Errorf("nudge turns = %v", g.Actor.NudgeTurns)
	}
	if g.ExecTimeout() != 90*time.Second {
		t.Errorf("exec timeout = %v", g.ExecTimeout())
	}
	if g.ValidationTimeout() != 10*time.Minute {
		t.Errorf("validation timeout = %v", g.ValidationTimeout())
	}
	if !g.Classify.PreferFix || len(g.Classify.TestPatterns) != 2 {
		t.Errorf("classify = %+v", g.Classify)
	}
	if len(g.Screen.ExtraRunners) != 1 {
		t.Errorf("screen = %+v", g.Screen)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "generator:\n  workdir: /tmp/w\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := cfg.Generator
	if g.Actor.Model != "gpt-4o" {
		t.Errorf("model = %q, want default", g.Actor.Model)
	}
	if g.Actor.MaxTurns != 30 || g.Actor.MaxTokens != 8192 {
		t.Errorf("actor defaults = %+v", g.Actor)
	}
	if len(g.Actor.NudgeTurns) != 2 || g.Actor.NudgeTurns[0] != 10 || g.Actor.NudgeTurns[1] != 20 {
		t.Errorf("nudge defaults = %v", g.Actor.NudgeTurns)
	}
	if g.ExecTimeout() != 2*time.Minute || g.ValidationTimeout() != 5*time.Minute {
		t.Errorf("timeout defaults = %v, %v", g.ExecTimeout(), g.ValidationTimeout())
	}
	if g.TasksDir == "" {
		t.Error("tasks_dir default should be filled in")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "generator: [not a map")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_CleanConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatal(err)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestValidate_CatchesProblems(t *testing.T) {
	cfg := &GeneratorConfig{Generator: Generator{
		Workdir:  "/tmp/w",
		TasksDir: "/tmp/t",
		Actor:    Actor{Model: "gpt-4o", MaxTurns: 10, NudgeTurns: []int{25}},
		Timeouts: Timeouts{Exec: "soon", Validation: "-1m"},
		Classify: Classify{TestPatterns: []string{" "}},
	}}
	errs := Validate(cfg)

	wantFields := map[string]bool{
		"generator.actor.nudge_turns":         false,
		"generator.timeouts.exec":             false,
		"generator.timeouts.validation":       false,
		"generator.classify.test_patterns[0]": false,
	}
	for _, e := range errs {
		if _, ok := wantFields[e.Field]; ok {
			wantFields[e.Field] = true
		}
	}
	for field, seen := range wantFields {
		if !seen {
			t.Errorf("expected a validation error for %s, got %v", field, errs)
		}
	}
}

func TestValidate_RequiresModelAndTurns(t *testing.T) {
	cfg := &GeneratorConfig{Generator: Generator{Workdir: "/w", TasksDir: "/t"}}
	errs := Validate(cfg)
	var sawModel, sawTurns bool
	for _, e := range errs {
		switch e.Field {
		case "generator.actor.model":
			sawModel = true
		case "generator.actor.max_turns":
			sawTurns = true
		}
	}
	if !sawModel || !sawTurns {
		t.Errorf("errs = %v, want model and max_turns errors", errs)
	}
}

package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a GeneratorConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *GeneratorConfig) []ValidationError {
	var errs []ValidationError
	g := cfg.Generator

	if g.Workdir == "" {
		errs = append(errs, ValidationError{Field: "generator.workdir", Message: "is required"})
	}
	if g.TasksDir == "" {
		errs = append(errs, ValidationError{Field: "generator.tasks_dir", Message: "is required"})
	}

	if g.Actor.Model == "" {
		errs = append(errs, ValidationError{Field: "generator.actor.model", Message: "is required"})
	}
	if g.Actor.MaxTurns <= 0 {
		errs = append(errs, ValidationError{Field: "generator.actor.max_turns", Message: "must be positive"})
	}
	for _, n := range g.Actor.NudgeTurns {
		if n <= 0 || n > g.Actor.MaxTurns {
			errs = append(errs, ValidationError{
				Field:   "generator.actor.nudge_turns",
				Message: fmt.Sprintf("turn %d is outside the budget of %d", n, g.Actor.MaxTurns),
			})
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"generator.timeouts.exec", g.Timeouts.Exec},
		{"generator.timeouts.validation", g.Timeouts.Validation},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field.name,
				Message: fmt.Sprintf("invalid duration %q", field.value),
			})
			continue
		}
		if d <= 0 {
			errs = append(errs, ValidationError{Field: field.name, Message: "must be positive"})
		}
	}

	for i, p := range g.Classify.TestPatterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("generator.classify.test_patterns[%d]", i),
				Message: "must not be blank",
			})
		}
	}
	for i, p := range g.Classify.IgnorePatterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("generator.classify.ignore_patterns[%d]", i),
				Message: "must not be blank",
			})
		}
	}

	for i, r := range g.Screen.ExtraRunners {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("generator.screen.extra_runners[%d]", i),
				Message: "must not be blank",
			})
		}
	}

	return errs
}

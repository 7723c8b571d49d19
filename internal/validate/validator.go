// Package validate runs a candidate oracle script in both the buggy and the
// fixed repository states and accepts it only if it discriminates: non-zero
// exit on buggy, zero on fixed. The exit-code pair is the system's ground
// truth; nothing else determines correctness.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleet-ai/swe-task-generator/internal/report"
	"github.com/fleet-ai/swe-task-generator/internal/workspace"
)

// Outcome labels a verdict for actor feedback.
type Outcome string

const (
	// OutcomeAccepted means the oracle discriminates correctly.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeBothPass means the oracle does not exercise the bug.
	OutcomeBothPass Outcome = "both-pass"
	// OutcomeBothFail means the fix does not repair the defect as exercised,
	// or the oracle is broken.
	OutcomeBothFail Outcome = "both-fail"
	// OutcomeContradictory means buggy passed but fixed failed, which
	// suggests oracle non-determinism. Always a rejection.
	OutcomeContradictory Outcome = "contradictory"
)

// Verdict is the result of one differential validation.
type Verdict struct {
	BuggyExit    int
	FixedExit    int
	Accepted     bool
	Outcome      Outcome
	BuggyTimeout bool
	FixedTimeout bool
	BuggySummary report.Summary
	FixedSummary report.Summary
}

// SetupFailureError means an input changeset did not apply cleanly. This is a
// defect of the task, not of the oracle, and is unrecoverable for the session.
type SetupFailureError struct {
	Stage string // "apply-test" or "apply-fix"
	Err   error
}

func (e *SetupFailureError) Error() string {
	return fmt.Sprintf("validation setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupFailureError) Unwrap() error { return e.Err }

// EnvironmentFailureError means the oracle script could not execute at all
// (missing shell, unrunnable workspace). Distinct from a legitimate non-zero
// test result; surfaced as feedback so the actor can adapt.
type EnvironmentFailureError struct {
	State string // workspace state during the failed run
	Err   error
}

func (e *EnvironmentFailureError) Error() string {
	return fmt.Sprintf("oracle script could not execute in %s state: %v", e.State, e.Err)
}

func (e *EnvironmentFailureError) Unwrap() error { return e.Err }

// Workspace is the slice of the workspace surface validation drives.
type Workspace interface {
	Reset(ctx context.Context) error
	ApplyTestChanges(ctx context.Context) error
	ApplyFixChanges(ctx context.Context) error
	RunScript(ctx context.Context, script string, timeout time.Duration) (workspace.ExecResult, error)
}

// Validator executes the two-state differential protocol.
type Validator struct {
	ws      Workspace
	timeout time.Duration
}

// New creates a Validator. timeout bounds each oracle run; zero selects the
// 5-minute default.
func New(ws Workspace, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Validator{ws: ws, timeout: timeout}
}

// Validate runs the protocol in strict order:
// reset, apply test changes, run (buggy), apply fix changes on top without an
// intervening reset, run (fixed), verdict. A single call is authoritative:
// there are no hidden retries, and a timeout in either state is a hard
// failure for that run.
func (v *Validator) Validate(ctx context.Context, script string) (*Verdict, error) {
	if err := v.ws.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset workspace: %w", err)
	}
	if err := v.ws.ApplyTestChanges(ctx); err != nil {
		return nil, v.setupFailure("apply-test", err)
	}

	buggy, err := v.ws.RunScript(ctx, script, v.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EnvironmentFailureError{State: "buggy", Err: err}
	}

	if err := v.ws.ApplyFixChanges(ctx); err != nil {
		return nil, v.setupFailure("apply-fix", err)
	}

	fixed, err := v.ws.RunScript(ctx, script, v.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EnvironmentFailureError{State: "fixed", Err: err}
	}

	verdict := &Verdict{
		BuggyExit:    buggy.ExitCode,
		FixedExit:    fixed.ExitCode,
		BuggyTimeout: buggy.TimedOut,
		FixedTimeout: fixed.TimedOut,
		BuggySummary: report.Summarize(buggy.Stdout, buggy.Stderr, buggy.ExitCode),
		FixedSummary: report.Summarize(fixed.Stdout, fixed.Stderr, fixed.ExitCode),
	}
	verdict.Outcome = classify(buggy.ExitCode, fixed.ExitCode)
	verdict.Accepted = verdict.Outcome == OutcomeAccepted

	slog.Info("differential validation complete",
		"buggy_exit", verdict.BuggyExit,
		"fixed_exit", verdict.FixedExit,
		"outcome", verdict.Outcome)
	return verdict, nil
}

func (v *Validator) setupFailure(stage string, err error) error {
	var conflict *workspace.PatchConflictError
	if errors.As(err, &conflict) {
		return &SetupFailureError{Stage: stage, Err: conflict}
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// classify derives the verdict label. Acceptance is exactly buggy!=0 and
// fixed==0; every other combination is one of three labeled rejections.
func classify(buggyExit int, fixedExit int) Outcome {
	switch {
	case buggyExit != 0 && fixedExit == 0:
		return OutcomeAccepted
	case buggyExit == 0 && fixedExit == 0:
		return OutcomeBothPass
	case buggyExit != 0 && fixedExit != 0:
		return OutcomeBothFail
	default:
		return OutcomeContradictory
	}
}

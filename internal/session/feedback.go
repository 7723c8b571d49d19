package session

import (
	"fmt"
	"strings"

	"github.com/fleet-ai/swe-task-generator/internal/validate"
	"github.com/fleet-ai/swe-task-generator/internal/workspace"
)

// Output truncation for actor-visible command results.
const (
	maxStdoutLen = 3000
	maxStderrLen = 2000
)

// Feedback is the structured rejection message handed back to the actor.
type Feedback struct {
	Category string // "screening", "validation", "environment", "timeout"
	Reason   string
	Verdict  *validate.Verdict
}

// Message renders the feedback for the actor. Validation rejections always
// carry the literal exit codes observed in both states.
func (f Feedback) Message() string {
	switch f.Category {
	case "screening":
		return "SCREENING REJECTED: " + f.Reason + " Revise and resubmit with submit_oracle_script."
	case "validation":
		return f.validationMessage()
	case "environment":
		return "ENVIRONMENT FAILURE: " + f.Reason + " The script could not execute at all; check interpreters and paths, then resubmit."
	default:
		return f.Reason
	}
}

func (f Feedback) validationMessage() string {
	v := f.Verdict
	var b strings.Builder
	fmt.Fprintf(&b, "VALIDATION FAILED (%s):\n", v.Outcome)
	fmt.Fprintf(&b, "- Buggy state exit code: %d (expected non-zero)\n", v.BuggyExit)
	fmt.Fprintf(&b, "- Fixed state exit code: %d (expected zero)\n", v.FixedExit)
	if v.BuggyTimeout {
		b.WriteString("- The buggy-state run TIMED OUT; the script must not hang (no interactive prompts, no watch mode).\n")
	}
	if v.FixedTimeout {
		b.WriteString("- The fixed-state run TIMED OUT; the script must not hang (no interactive prompts, no watch mode).\n")
	}
	fmt.Fprintf(&b, "- Buggy run: %s\n", v.BuggySummary.Headline)
	fmt.Fprintf(&b, "- Fixed run: %s\n", v.FixedSummary.Headline)
	if detail := pickDetail(v); detail != "" {
		b.WriteString("Output tail:\n")
		b.WriteString(detail)
		b.WriteString("\n")
	}
	b.WriteString("The script must FAIL (non-zero) in the buggy state and PASS (exit 0) in the fixed state. Revise and resubmit with submit_oracle_script.")
	return b.String()
}

// pickDetail chooses the more useful output tail: the fixed-state failure
// when there is one (that is the run blocking acceptance), otherwise buggy.
func pickDetail(v *validate.Verdict) string {
	if v.FixedExit != 0 && v.FixedSummary.Detail != "" {
		return v.FixedSummary.Detail
	}
	return v.BuggySummary.Detail
}

// renderExec formats a command result for the actor, truncating output the
// same way the exploration surface always has.
func renderExec(res workspace.ExecResult) string {
	if res.TimedOut {
		return fmt.Sprintf("Error: command timed out (exit code %d). The process group was terminated.", res.ExitCode)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Exit code: %d\n", res.ExitCode)
	if res.Stdout != "" {
		fmt.Fprintf(&b, "STDOUT:\n%s\n", truncate(res.Stdout, maxStdoutLen))
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "STDERR:\n%s\n", truncate(res.Stderr, maxStderrLen))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…(truncated)"
}

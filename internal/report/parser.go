// Package report condenses raw oracle-run output into short summaries for
// actor feedback. Parsers are framework-specific; detection falls back to a
// generic exit-code summary.
package report

import "strings"

// Summary is the normalized digest of one oracle run.
type Summary struct {
	Framework string `json:"framework"`
	Passed    bool   `json:"passed"`
	Headline  string `json:"headline"`
	Detail    string `json:"detail,omitempty"`
}

// Parser converts raw command output into a Summary.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) Summary
}

// maxDetailLen caps how much output a summary retains.
const maxDetailLen = 4000

// Summarize parses output with the best-matching framework parser.
func Summarize(stdout string, stderr string, exitCode int) Summary {
	return Detect(stdout, stderr).Parse(stdout, stderr, exitCode)
}

// Detect picks a parser from output markers.
func Detect(stdout string, stderr string) Parser {
	combined := stdout + "\n" + stderr
	switch {
	case strings.Contains(combined, "test session starts") || strings.Contains(combined, "short test summary info"):
		return &PytestParser{}
	case strings.Contains(combined, "--- FAIL:") || strings.Contains(combined, "--- PASS:") || strings.Contains(combined, "\nok  \t") || strings.Contains(combined, "\nFAIL\t"):
		return &GoTestParser{}
	default:
		return &GenericParser{}
	}
}

// tail keeps the end of combined output — error summaries and tracebacks are
// usually at the end.
func tail(stdout string, stderr string, max int) string {
	combined := stdout
	if stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr
	}
	combined = strings.TrimSpace(combined)
	if len(combined) > max {
		combined = "…(truncated)\n" + combined[len(combined)-max:]
	}
	return combined
}

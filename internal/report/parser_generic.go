package report

import "fmt"

// GenericParser is the fallback: exit code plus the failure tail.
type GenericParser struct{}

func genericHeadline(exitCode int) string {
	if exitCode == 0 {
		return "passed (exit code 0)"
	}
	return fmt.Sprintf("failed (exit code %d)", exitCode)
}

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) Summary {
	s := Summary{Framework: "generic", Passed: exitCode == 0, Headline: genericHeadline(exitCode)}
	if !s.Passed {
		s.Detail = tail(stdout, stderr, maxDetailLen)
	}
	return s
}

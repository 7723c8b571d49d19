package report

import (
	"regexp"
	"strings"
)

// PytestParser extracts the pytest summary line and failed-test names.
type PytestParser struct{}

// e.g. "==== 1 failed, 2 passed in 0.12s ===="
var pytestSummaryRe = regexp.MustCompile(`(?m)^=+ (.*(?:passed|failed|error|errors|no tests ran).*?) =+$`)

// e.g. "FAILED tests/test_models.py::test_prepare_url - AssertionError"
var pytestFailedRe = regexp.MustCompile(`(?m)^(?:FAILED|ERROR) (\S+)`)

func (p *PytestParser) Parse(stdout string, stderr string, exitCode int) Summary {
	s := Summary{Framework: "pytest", Passed: exitCode == 0}

	if m := pytestSummaryRe.FindAllStringSubmatch(stdout, -1); len(m) > 0 {
		s.Headline = m[len(m)-1][1]
	} else {
		s.Headline = genericHeadline(exitCode)
	}

	if !s.Passed {
		if failed := pytestFailedRe.FindAllStringSubmatch(stdout, -1); len(failed) > 0 {
			var names []string
			for _, f := range failed {
				names = append(names, f[1])
			}
			if len(names) > 10 {
				names = names[:10]
			}
			s.Headline += " [" + strings.Join(names, ", ") + "]"
		}
		s.Detail = tail(stdout, stderr, maxDetailLen)
	}
	return s
}

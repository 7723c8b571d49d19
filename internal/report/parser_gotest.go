package report

import (
	"fmt"
	"regexp"
)

// GoTestParser counts go test pass/fail lines.
type GoTestParser struct{}

var goFailRe = regexp.MustCompile(`(?m)^\s*--- FAIL: (\S+)`)
var goPassRe = regexp.MustCompile(`(?m)^\s*--- PASS: (\S+)`)

func (p *GoTestParser) Parse(stdout string, stderr string, exitCode int) Summary {
	s := Summary{Framework: "go test", Passed: exitCode == 0}

	fails := goFailRe.FindAllStringSubmatch(stdout, -1)
	passes := goPassRe.FindAllStringSubmatch(stdout, -1)
	s.Headline = fmt.Sprintf("%d failed, %d passed (exit %d)", len(fails), len(passes), exitCode)

	if !s.Passed {
		if len(fails) > 0 {
			s.Headline += ": " + fails[0][1]
			if len(fails) > 1 {
				s.Headline += fmt.Sprintf(" (+%d more)", len(fails)-1)
			}
		}
		s.Detail = tail(stdout, stderr, maxDetailLen)
	}
	return s
}

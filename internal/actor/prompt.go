package actor

import (
	"fmt"
	"strings"
)

// maxDiffExcerpt caps how much of the test diff the system prompt carries.
const maxDiffExcerpt = 3000

// TaskContext is the change metadata the actor sees up front.
type TaskContext struct {
	Repo             string
	PRNumber         int
	Title            string
	BaseCommit       string
	ProblemStatement string
	TestDiff         string
}

// SystemPrompt renders the standing instructions for the proposing actor.
func (c TaskContext) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an autonomous agent building a verifiable regression-test oracle.\n\n")
	b.WriteString("**Task**: produce a bash script that reliably distinguishes the buggy and fixed states of a repository.\n\n")
	b.WriteString("**Context**:\n")
	fmt.Fprintf(&b, "- Repository: %s\n", c.Repo)
	fmt.Fprintf(&b, "- PR #%d: %s\n", c.PRNumber, c.Title)
	fmt.Fprintf(&b, "- Base commit: %s\n", c.BaseCommit)
	b.WriteString("- The repository is checked out at the base commit with the test changes applied (BUGGY state).\n\n")

	if c.ProblemStatement != "" {
		b.WriteString("**Problem statement**:\n")
		b.WriteString(excerpt(c.ProblemStatement, maxDiffExcerpt))
		b.WriteString("\n\n")
	}

	b.WriteString("**Test changes from the PR**:\n```diff\n")
	b.WriteString(excerpt(c.TestDiff, maxDiffExcerpt))
	b.WriteString("\n```\n\n")

	b.WriteString(`**Requirements for the oracle script**:
1. MUST exit 0 when tests pass in the FIXED state.
2. MUST exit non-zero when tests fail in the BUGGY state.
3. MUST execute actual tests (pytest, go test, npm test, ...), never just grep file contents.
4. Should be self-contained: install dependencies, then run the specific tests from the test changes.

**Tools**:
- bash: run a shell command in the repository directory.
- switch_to_fixed: apply the fix changes (FIXED state).
- switch_to_buggy: withhold the fix changes (BUGGY state).
- submit_oracle_script: submit the final script; it is validated in both states automatically.

**Workflow**: explore briefly (build files, test layout), identify the test framework, find which tests the test changes touch, then submit. A typical script:

    #!/bin/bash
    set -e
    pip install -e . 2>/dev/null || true
    pytest tests/test_specific.py::test_case -xvs

Keep exploration brief and submit early; you get validation feedback and can resubmit.`)
	return b.String()
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

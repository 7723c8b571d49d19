// Package screen statically rejects oracle scripts that would not exercise
// the bug: scripts with no recognized test-runner invocation, or whose only
// commands inspect text instead of running code. The screen is a
// necessary-but-not-sufficient gate ahead of differential validation.
package screen

import (
	"strings"
)

// Decision is the screening verdict. Reason is actor-facing feedback.
type Decision struct {
	Accepted bool
	Reason   string
}

// defaultRunners are command substrings that count as executing a test
// framework or a build-then-test step.
var defaultRunners = []string{
	"pytest",
	"py.test",
	"python -m pytest",
	"python -m unittest",
	"python3 -m pytest",
	"python3 -m unittest",
	"unittest",
	"tox",
	"nosetests",
	"go test",
	"npm test",
	"npm run test",
	"yarn test",
	"pnpm test",
	"cargo test",
	"mvn test",
	"gradle test",
	"./gradlew test",
	"make test",
	"make check",
	"rspec",
	"phpunit",
	"ctest",
	"rake test",
	"dotnet test",
}

// textTools are commands that only inspect or route text. A script built
// solely from these can match strings in source files without ever running
// them, which is exactly the hack the screen exists to catch.
var textTools = []string{
	"grep", "egrep", "fgrep", "cat", "diff", "cmp", "head", "tail",
	"awk", "sed", "ls", "find", "wc", "echo", "printf", "test", "[",
	"exit", "true", "false", "cd", "set", "sleep", "pwd", "which",
}

// Screener holds the test-runner allowlist.
type Screener struct {
	runners []string
}

// New creates a Screener with the default allowlist plus any extra runner
// patterns from configuration.
func New(extraRunners ...string) *Screener {
	runners := make([]string, 0, len(defaultRunners)+len(extraRunners))
	runners = append(runners, defaultRunners...)
	runners = append(runners, extraRunners...)
	return &Screener{runners: runners}
}

// Screen classifies an oracle script. It never executes the script.
func (s *Screener) Screen(script string) Decision {
	lines := commandLines(script)
	if len(lines) == 0 {
		return Decision{Reason: "script is empty or contains no commands"}
	}

	if !s.hasRunnerInvocation(lines) {
		if textOnly(lines) {
			return Decision{Reason: "script only inspects text (grep/cat/diff) and never runs a test framework; it must execute actual tests"}
		}
		return Decision{Reason: "script does not invoke a recognized test runner (pytest, go test, npm test, ...)"}
	}

	return Decision{Accepted: true, Reason: "test runner invocation found"}
}

// commandLines returns the script's non-comment, non-empty lines with
// shebang removed.
func commandLines(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// hasRunnerInvocation reports whether any line actually invokes an
// allowlisted runner. A runner name inside an echo/printf string does not
// count: printing "pytest passed" is not running pytest.
func (s *Screener) hasRunnerInvocation(lines []string) bool {
	for _, line := range lines {
		first := firstWord(line)
		if first == "echo" || first == "printf" {
			continue
		}
		for _, runner := range s.runners {
			if strings.Contains(line, runner) {
				return true
			}
		}
	}
	return false
}

// textOnly reports whether every command on every line is a text-inspection
// utility or shell control flow.
func textOnly(lines []string) bool {
	for _, line := range lines {
		for _, cmd := range splitCommands(line) {
			first := firstWord(cmd)
			if first == "" {
				continue
			}
			if !isTextTool(first) && !isShellKeyword(first) {
				return false
			}
		}
	}
	return true
}

// splitCommands breaks a line on the common shell separators so each command
// is judged by its own leading word.
func splitCommands(line string) []string {
	for _, sep := range []string{"&&", "||", ";", "|"} {
		line = strings.ReplaceAll(line, sep, "\x00")
	}
	return strings.Split(line, "\x00")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isTextTool(cmd string) bool {
	for _, t := range textTools {
		if cmd == t {
			return true
		}
	}
	return false
}

var shellKeywords = map[string]bool{
	"if": true, "then": true, "else": true, "elif": true, "fi": true,
	"for": true, "while": true, "do": true, "done": true, "case": true,
	"esac": true, "in": true, "function": true, "return": true, "!": true,
}

func isShellKeyword(cmd string) bool {
	return shellKeywords[cmd]
}

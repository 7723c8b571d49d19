package diffsplit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Label classifies a changed file within a pull-request diff.
type Label int

const (
	// LabelFix marks source changes that constitute the behavioral fix.
	LabelFix Label = iota
	// LabelTest marks changes that add or modify tests.
	LabelTest
	// LabelIgnore marks docs/metadata changes excluded from both changesets.
	LabelIgnore
)

func (l Label) String() string {
	switch l {
	case LabelTest:
		return "test"
	case LabelIgnore:
		return "ignore"
	default:
		return "fix"
	}
}

// ErrNoTestChanges means the diff has no test-classified files, so no
// discriminating oracle can be built from it.
var ErrNoTestChanges = errors.New("diff contains no test changes")

// ErrNoFixChanges means the diff has no source-classified files, so there is
// no behavioral change to discriminate against.
var ErrNoFixChanges = errors.New("diff contains no fix changes")

// Rules configures per-file classification. Matching is case-insensitive
// substring matching over the repo-relative path, the same convention the
// upstream PR datasets use.
type Rules struct {
	// TestPatterns mark a file as test-relevant. Default: "test".
	TestPatterns []string
	// IgnorePatterns mark docs/metadata files excluded from both changesets.
	IgnorePatterns []string
	// PreferTest resolves files matching both a test and an ignore pattern.
	// When true (the default policy) the test match wins: misclassifying a
	// fix file as a test only weakens discrimination, never inverts it.
	PreferTest bool
}

// DefaultRules returns the standard classification policy.
func DefaultRules() Rules {
	return Rules{
		TestPatterns: []string{"test"},
		IgnorePatterns: []string{
			"changelog", "changes", "history", "news",
			"readme", "authors", "contributing", "license",
			".md", ".rst", ".txt",
			".gitignore", ".github/", "docs/",
		},
		PreferTest: true,
	}
}

// Classify resolves a single path to exactly one label. Unmatched paths
// default to fix: an unclassified change is more likely part of the
// behavioral fix than a test.
func (r Rules) Classify(path string) Label {
	lower := strings.ToLower(path)
	isTest := matchesAny(lower, r.TestPatterns)
	isIgnore := matchesAny(lower, r.IgnorePatterns)

	if r.PreferTest && isTest {
		return LabelTest
	}
	if isIgnore {
		return LabelIgnore
	}
	if isTest {
		return LabelTest
	}
	return LabelFix
}

func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// SplitResult holds the two derived changesets plus the classification audit
// trail. TestDiff and FixDiff are each independently valid unified diffs,
// preserving the original per-file order.
type SplitResult struct {
	TestDiff     string
	FixDiff      string
	TestFiles    []string
	FixFiles     []string
	IgnoredFiles []string
}

// Split partitions a full PR diff into disjoint test and fix changesets.
// Every changed file resolves to exactly one of the three sets; a diff with
// no test files or no fix files is rejected outright.
func Split(fullDiff string, rules Rules) (*SplitResult, error) {
	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(fullDiff)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	if len(fds) == 0 {
		return nil, fmt.Errorf("parse diff: no file diffs found")
	}

	result := &SplitResult{}
	var testFDs, fixFDs []*diff.FileDiff

	for _, fd := range fds {
		path := PathOf(fd)
		switch rules.Classify(path) {
		case LabelTest:
			testFDs = append(testFDs, fd)
			result.TestFiles = append(result.TestFiles, path)
		case LabelIgnore:
			result.IgnoredFiles = append(result.IgnoredFiles, path)
		default:
			fixFDs = append(fixFDs, fd)
			result.FixFiles = append(result.FixFiles, path)
		}
	}

	if len(testFDs) == 0 {
		return nil, ErrNoTestChanges
	}
	if len(fixFDs) == 0 {
		return nil, ErrNoFixChanges
	}

	if result.TestDiff, err = printDiffs(testFDs); err != nil {
		return nil, fmt.Errorf("print test changeset: %w", err)
	}
	if result.FixDiff, err = printDiffs(fixFDs); err != nil {
		return nil, fmt.Errorf("print fix changeset: %w", err)
	}
	return result, nil
}

func printDiffs(fds []*diff.FileDiff) (string, error) {
	out, err := diff.PrintMultiFileDiff(fds)
	if err != nil {
		return "", err
	}
	// git apply wants a trailing newline after the last hunk.
	if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return string(out), nil
}

// PathOf extracts the repo-relative path of a file diff, preferring the new
// name so renames and additions classify by their destination.
func PathOf(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	return StripGitPrefix(name)
}

// StripGitPrefix removes the a/ or b/ prefix git puts on diff paths.
func StripGitPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

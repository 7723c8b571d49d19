// Package fetch pulls merged pull requests and their linked issues from
// GitHub through the gh CLI, producing the change record the rest of the
// generator consumes.
package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
}

// ExecRunner runs gh commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// LinkedIssue is an issue the pull request closes.
type LinkedIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Change is one merged pull request with everything the generator needs:
// metadata, the full unified diff, and the issues it closed.
type Change struct {
	Repo       string        `json:"repo"` // owner/name
	Number     int           `json:"number"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	BaseCommit string        `json:"base_commit"`
	HeadCommit string        `json:"head_commit"`
	MergedAt   string        `json:"merged_at"`
	URL        string        `json:"url"`
	Diff       string        `json:"diff"`
	Issues     []LinkedIssue `json:"issues,omitempty"`
}

// ProblemStatement composes the human-readable bug description: linked issue
// bodies when present, otherwise the PR description itself.
func (c *Change) ProblemStatement() string {
	var parts []string
	for _, is := range c.Issues {
		if strings.TrimSpace(is.Body) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Issue #%d: %s\n\n%s", is.Number, is.Title, strings.TrimSpace(is.Body)))
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n---\n\n")
	}
	return strings.TrimSpace(c.Body)
}

// Client fetches changes from GitHub.
type Client struct {
	cmd CmdRunner
}

// NewClient creates a fetch client.
func NewClient(cmd CmdRunner) *Client {
	return &Client{cmd: cmd}
}

// ValidatePRNumber checks that a PR number is positive.
func ValidatePRNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid PR number %d: must be positive", n)
	}
	return nil
}

// prView mirrors the gh pr view JSON payload.
type prView struct {
	Number                  int    `json:"number"`
	Title                   string `json:"title"`
	Body                    string `json:"body"`
	BaseRefOid              string `json:"baseRefOid"`
	HeadRefOid              string `json:"headRefOid"`
	MergedAt                string `json:"mergedAt"`
	URL                     string `json:"url"`
	ClosingIssuesReferences []struct {
		Number int `json:"number"`
	} `json:"closingIssuesReferences"`
}

// GetChange fetches one merged PR, its diff, and its linked issues.
// repo is owner/name.
func (c *Client) GetChange(repo string, number int) (*Change, error) {
	if err := ValidatePRNumber(number); err != nil {
		return nil, err
	}
	if repo == "" {
		return nil, fmt.Errorf("repo is required (owner/name)")
	}

	out, err := c.cmd.Run("pr", "view", fmt.Sprintf("%d", number), "--repo", repo,
		"--json", "number,title,body,baseRefOid,headRefOid,mergedAt,url,closingIssuesReferences")
	if err != nil {
		return nil, fmt.Errorf("get PR %s#%d: %w", repo, number, err)
	}
	var view prView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		return nil, fmt.Errorf("parse PR JSON: %w", err)
	}
	if view.MergedAt == "" {
		return nil, fmt.Errorf("PR %s#%d is not merged; only merged PRs make tasks", repo, number)
	}

	diff, err := c.cmd.Run("pr", "diff", fmt.Sprintf("%d", number), "--repo", repo)
	if err != nil {
		return nil, fmt.Errorf("get PR diff %s#%d: %w", repo, number, err)
	}

	change := &Change{
		Repo:       repo,
		Number:     view.Number,
		Title:      view.Title,
		Body:       view.Body,
		BaseCommit: view.BaseRefOid,
		HeadCommit: view.HeadRefOid,
		MergedAt:   view.MergedAt,
		URL:        view.URL,
		Diff:       diff,
	}

	for _, ref := range view.ClosingIssuesReferences {
		issue, err := c.getIssue(repo, ref.Number)
		if err != nil {
			// A deleted or inaccessible issue should not sink the change.
			continue
		}
		change.Issues = append(change.Issues, *issue)
	}

	return change, nil
}

func (c *Client) getIssue(repo string, number int) (*LinkedIssue, error) {
	out, err := c.cmd.Run("issue", "view", fmt.Sprintf("%d", number), "--repo", repo,
		"--json", "number,title,body")
	if err != nil {
		return nil, fmt.Errorf("get issue %s#%d: %w", repo, number, err)
	}
	var issue LinkedIssue
	if err := json.Unmarshal([]byte(out), &issue); err != nil {
		return nil, fmt.Errorf("parse issue JSON: %w", err)
	}
	return &issue, nil
}

// CacheChange fetches a change and writes it to dir/change.json.
func (c *Client) CacheChange(repo string, number int, dir string) (*Change, error) {
	change, err := c.GetChange(repo, number)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(change, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal change: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	path := filepath.Join(dir, "change.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write change.json: %w", err)
	}
	return change, nil
}

// LoadCachedChange reads a previously cached change from disk.
func LoadCachedChange(dir string) (*Change, error) {
	data, err := os.ReadFile(filepath.Join(dir, "change.json"))
	if err != nil {
		return nil, err
	}
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, fmt.Errorf("parse cached change: %w", err)
	}
	return &change, nil
}

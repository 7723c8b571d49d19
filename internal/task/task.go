// Package task assembles and persists accepted oracle tasks: the self-
// verifying artifacts that pair a repository state with a validated
// regression-test script.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Task is the final artifact for one accepted oracle.
type Task struct {
	InstanceID       string `json:"instance_id"`
	Repo             string `json:"repo"`
	PRNumber         int    `json:"pr_number"`
	Title            string `json:"title"`
	BaseCommit       string `json:"base_commit"`
	ProblemStatement string `json:"problem_statement"`
	TestPatch        string `json:"test_patch"`
	FixPatch         string `json:"fix_patch"`
	OracleScript     string `json:"oracle_script"`
	BuggyExitCode    int    `json:"buggy_exit_code"`
	FixedExitCode    int    `json:"fixed_exit_code"`
	SessionID        string `json:"session_id"`
	Turns            int    `json:"turns"`
	CreatedAt        string `json:"created_at"`
}

var unsafeIDChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// InstanceID derives the stable identifier for a repo/PR pair, e.g.
// psf/requests #6149 -> psf__requests-6149.
func InstanceID(repo string, prNumber int) string {
	id := strings.ToLower(strings.ReplaceAll(repo, "/", "__"))
	id = unsafeIDChars.ReplaceAllString(id, "-")
	return fmt.Sprintf("%s-%d", id, prNumber)
}

// Store manages task artifacts on disk, one directory per instance.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.swetask/tasks, creating the directory
// if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".swetask", "tasks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) instanceDir(instanceID string) string {
	return filepath.Join(s.baseDir, instanceID)
}

// Save writes the task directory: task.json plus the script and patches as
// standalone files for direct consumption by harnesses. Returns the
// instance directory.
func (s *Store) Save(t *Task) (string, error) {
	if t.InstanceID == "" {
		t.InstanceID = InstanceID(t.Repo, t.PRNumber)
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	dir := s.instanceDir(t.InstanceID)
	if err := writeJSON(filepath.Join(dir, "task.json"), t); err != nil {
		return "", fmt.Errorf("write task.json: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "oracle.sh"), []byte(t.OracleScript), 0o755); err != nil {
		return "", fmt.Errorf("write oracle.sh: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "test.patch"), []byte(t.TestPatch), 0o644); err != nil {
		return "", fmt.Errorf("write test.patch: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "fix.patch"), []byte(t.FixPatch), 0o644); err != nil {
		return "", fmt.Errorf("write fix.patch: %w", err)
	}
	return dir, nil
}

// Load reads a saved task by instance ID.
func (s *Store) Load(instanceID string) (*Task, error) {
	var t Task
	if err := readJSON(filepath.Join(s.instanceDir(instanceID), "task.json"), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task %s not found", instanceID)
		}
		return nil, err
	}
	return &t, nil
}

// List returns the instance IDs of all saved tasks, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.baseDir, e.Name(), "task.json")); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// State identifies which repository state is materialized on disk.
// Transitions follow a total order and only ever move forward by resetting
// to base and replaying patches, never by reversing one.
type State int

const (
	// StateBase is the repository at the base revision, untouched.
	StateBase State = iota
	// StateBuggy is base plus the test changeset.
	StateBuggy
	// StateFixed is base plus the test and fix changesets.
	StateFixed
)

func (s State) String() string {
	switch s {
	case StateBuggy:
		return "buggy"
	case StateFixed:
		return "fixed"
	default:
		return "base"
	}
}

// PatchConflictError means a changeset did not apply cleanly. For the input
// changesets this is fatal to the session: the task itself is malformed.
type PatchConflictError struct {
	Changeset string // "test" or "fix"
	Output    string
}

func (e *PatchConflictError) Error() string {
	return fmt.Sprintf("%s changeset did not apply cleanly: %s", e.Changeset, e.Output)
}

// GitRunner provides git commands. Interface for testing.
type GitRunner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecGit implements GitRunner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Options configures a Workspace. Zero values select the real git and shell
// runners with a 2-minute exec timeout.
type Options struct {
	Git         GitRunner
	Exec        Execer
	ExecTimeout time.Duration
}

// Workspace is a single checked-out copy of a repository at a fixed base
// revision. It owns everything under its directory and nothing outside it.
// Single-writer: one session drives one Workspace at a time.
type Workspace struct {
	dir         string
	repoDir     string
	baseRev     string
	git         GitRunner
	exec        Execer
	execTimeout time.Duration
	state       State
}

// New creates a Workspace rooted at dir. The repository lives in dir/repo;
// patches are staged next to it, never inside the working tree.
func New(dir string, baseRev string, opts Options) *Workspace {
	if opts.Git == nil {
		opts.Git = &ExecGit{}
	}
	if opts.Exec == nil {
		opts.Exec = ShellRunner{}
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = 2 * time.Minute
	}
	return &Workspace{
		dir:         dir,
		repoDir:     filepath.Join(dir, "repo"),
		baseRev:     baseRev,
		git:         opts.Git,
		exec:        opts.Exec,
		execTimeout: opts.ExecTimeout,
		state:       StateBase,
	}
}

// Dir returns the workspace root directory.
func (w *Workspace) Dir() string { return w.dir }

// RepoDir returns the repository working tree directory.
func (w *Workspace) RepoDir() string { return w.repoDir }

// State returns the currently materialized repository state.
func (w *Workspace) State() State { return w.state }

// Init clones the repository if the working tree does not exist yet, then
// checks out the base revision.
func (w *Workspace) Init(ctx context.Context, repoURL string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir workspace: %w", err)
	}
	if _, err := os.Stat(filepath.Join(w.repoDir, ".git")); os.IsNotExist(err) {
		slog.Info("cloning repository", "url", repoURL, "dir", w.repoDir)
		if _, err := w.git.Run(w.dir, "clone", repoURL, "repo"); err != nil {
			return fmt.Errorf("clone %s: %w", repoURL, err)
		}
	}
	if _, err := w.git.Run(w.repoDir, "checkout", w.baseRev); err != nil {
		return fmt.Errorf("checkout base revision %s: %w", w.baseRev, err)
	}
	w.state = StateBase
	return nil
}

// SetChangeSets stages the test and fix changesets as patch files. The fix
// changeset may be empty (a deliberate no-op fix used in validation tests).
func (w *Workspace) SetChangeSets(testDiff string, fixDiff string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir workspace: %w", err)
	}
	if err := os.WriteFile(w.testPatchPath(), []byte(testDiff), 0o644); err != nil {
		return fmt.Errorf("write test patch: %w", err)
	}
	if err := os.WriteFile(w.fixPatchPath(), []byte(fixDiff), 0o644); err != nil {
		return fmt.Errorf("write fix patch: %w", err)
	}
	return nil
}

func (w *Workspace) testPatchPath() string { return filepath.Join(w.dir, "test.patch") }
func (w *Workspace) fixPatchPath() string  { return filepath.Join(w.dir, "fix.patch") }

// Reset restores the working tree to the base revision exactly, discarding
// uncommitted modifications and untracked files left behind by oracle runs.
// Mandatory before every state transition so transitions never depend on
// leftover artifacts.
func (w *Workspace) Reset(ctx context.Context) error {
	if _, err := w.git.Run(w.repoDir, "checkout", "--", "."); err != nil {
		return fmt.Errorf("discard modifications: %w", err)
	}
	if _, err := w.git.Run(w.repoDir, "clean", "-fdx"); err != nil {
		return fmt.Errorf("remove untracked files: %w", err)
	}
	if _, err := w.git.Run(w.repoDir, "checkout", w.baseRev); err != nil {
		return fmt.Errorf("checkout base revision %s: %w", w.baseRev, err)
	}
	w.state = StateBase
	return nil
}

// ApplyTestChanges applies the test changeset on top of a freshly reset base,
// moving the workspace to the buggy state.
func (w *Workspace) ApplyTestChanges(ctx context.Context) error {
	if w.state != StateBase {
		return fmt.Errorf("apply test changes: workspace is %s, reset to base first", w.state)
	}
	if err := w.applyPatch(ctx, w.testPatchPath(), "test"); err != nil {
		return err
	}
	w.state = StateBuggy
	return nil
}

// ApplyFixChanges applies the fix changeset on top of the buggy state,
// moving the workspace to the fixed state.
func (w *Workspace) ApplyFixChanges(ctx context.Context) error {
	if w.state != StateBuggy {
		return fmt.Errorf("apply fix changes: workspace is %s, want buggy", w.state)
	}
	if err := w.applyPatch(ctx, w.fixPatchPath(), "fix"); err != nil {
		return err
	}
	w.state = StateFixed
	return nil
}

// applyPatch tries git apply, then git apply --3way, then patch -p1.
// An empty patch file is a no-op. All strategies failing means the changeset
// conflicts with the current tree.
func (w *Workspace) applyPatch(ctx context.Context, patchPath string, name string) error {
	data, err := os.ReadFile(patchPath)
	if err != nil {
		return fmt.Errorf("read %s patch: %w", name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		slog.Debug("empty patch, skipping", "changeset", name)
		return nil
	}

	if _, err := w.git.Run(w.repoDir, "apply", patchPath); err == nil {
		return nil
	}
	if _, err := w.git.Run(w.repoDir, "apply", "--3way", patchPath); err == nil {
		return nil
	}
	res, err := w.exec.Exec(ctx, w.repoDir, fmt.Sprintf("patch -p1 --no-backup-if-mismatch -i %q", patchPath), w.execTimeout)
	if err == nil && res.ExitCode == 0 {
		return nil
	}

	out := res.Stdout
	if res.Stderr != "" {
		out += "\n" + res.Stderr
	}
	return &PatchConflictError{Changeset: name, Output: strings.TrimSpace(out)}
}

// Run executes a shell command scoped to the repository directory. A timeout
// of zero uses the workspace default. Timeouts surface as ExitTimeout with
// TimedOut set, never as success; the process group is torn down.
func (w *Workspace) Run(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if timeout <= 0 {
		timeout = w.execTimeout
	}
	res, err := w.exec.Exec(ctx, w.repoDir, command, timeout)
	if err != nil {
		return res, err
	}
	if res.TimedOut {
		slog.Warn("command timed out", "timeout", timeout, "state", w.state)
	}
	return res, nil
}

// RunScript stages an oracle script outside the working tree and executes it
// with the repository directory as cwd. Staging outside the tree keeps Reset
// from racing the script file, and the script never survives into the diff.
func (w *Workspace) RunScript(ctx context.Context, script string, timeout time.Duration) (ExecResult, error) {
	path := filepath.Join(w.dir, "oracle.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return ExecResult{}, fmt.Errorf("stage oracle script: %w", err)
	}
	return w.Run(ctx, fmt.Sprintf("bash %q", path), timeout)
}

// Teardown returns the working tree to base so the directory is safe for
// reuse. Best effort on a tree that was never initialized.
func (w *Workspace) Teardown(ctx context.Context) error {
	if _, err := os.Stat(w.repoDir); os.IsNotExist(err) {
		return nil
	}
	return w.Reset(ctx)
}

// Destroy removes the entire workspace directory.
func (w *Workspace) Destroy() error {
	return os.RemoveAll(w.dir)
}

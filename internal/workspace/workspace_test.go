package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// fakeGit records calls and fails any command whose joined args match a
// configured prefix.
type fakeGit struct {
	calls    [][]string
	failures []string
}

func (g *fakeGit) Run(dir string, args ...string) (string, error) {
	g.calls = append(g.calls, args)
	joined := strings.Join(args, " ")
	for _, prefix := range g.failures {
		if strings.HasPrefix(joined, prefix) {
			return "error: patch failed", fmt.Errorf("git %s: exit 1", joined)
		}
	}
	return "", nil
}

type fakeExec struct {
	calls []string
	res   ExecResult
	err   error
}

func (e *fakeExec) Exec(ctx context.Context, dir string, command string, timeout time.Duration) (ExecResult, error) {
	e.calls = append(e.calls, command)
	return e.res, e.err
}

func newTestWorkspace(t *testing.T, git GitRunner, execer Execer) *Workspace {
	t.Helper()
	w := New(t.TempDir(), "abc123", Options{Git: git, Exec: execer})
	if err := w.SetChangeSets("--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new\n", "--- a/y\n+++ b/y\n@@ -1 +1 @@\n-bug\n+fix\n"); err != nil {
		t.Fatalf("set changesets: %v", err)
	}
	return w
}

func TestWorkspace_StateTransitions(t *testing.T) {
	git := &fakeGit{}
	w := newTestWorkspace(t, git, &fakeExec{})
	ctx := context.Background()

	if w.State() != StateBase {
		t.Fatalf("initial state = %v, want base", w.State())
	}
	if err := w.ApplyTestChanges(ctx); err != nil {
		t.Fatalf("apply test: %v", err)
	}
	if w.State() != StateBuggy {
		t.Errorf("state = %v, want buggy", w.State())
	}
	if err := w.ApplyFixChanges(ctx); err != nil {
		t.Fatalf("apply fix: %v", err)
	}
	if w.State() != StateFixed {
		t.Errorf("state = %v, want fixed", w.State())
	}

	// Forward-only: applying test changes from fixed must be rejected.
	if err := w.ApplyTestChanges(ctx); err == nil {
		t.Error("expected error applying test changes from fixed state")
	}

	if err := w.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if w.State() != StateBase {
		t.Errorf("state after reset = %v, want base", w.State())
	}
}

func TestWorkspace_ApplyFixRequiresBuggy(t *testing.T) {
	w := newTestWorkspace(t, &fakeGit{}, &fakeExec{})
	if err := w.ApplyFixChanges(context.Background()); err == nil {
		t.Error("expected error applying fix changes from base state")
	}
}

func TestWorkspace_ResetSequence(t *testing.T) {
	git := &fakeGit{}
	w := newTestWorkspace(t, git, &fakeExec{})
	if err := w.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}

	want := []string{"checkout -- .", "clean -fdx", "checkout abc123"}
	if len(git.calls) != len(want) {
		t.Fatalf("git calls = %v, want %v", git.calls, want)
	}
	for i, w := range want {
		if got := strings.Join(git.calls[i], " "); got != w {
			t.Errorf("git call %d = %q, want %q", i, got, w)
		}
	}
}

func TestWorkspace_ApplyFallsBackToPatch(t *testing.T) {
	git := &fakeGit{failures: []string{"apply"}}
	execer := &fakeExec{res: ExecResult{ExitCode: 0}}
	w := newTestWorkspace(t, git, execer)

	if err := w.ApplyTestChanges(context.Background()); err != nil {
		t.Fatalf("apply test with patch fallback: %v", err)
	}
	if len(execer.calls) != 1 || !strings.HasPrefix(execer.calls[0], "patch -p1") {
		t.Errorf("exec calls = %v, want one patch -p1 invocation", execer.calls)
	}
}

func TestWorkspace_ApplyConflict(t *testing.T) {
	git := &fakeGit{failures: []string{"apply"}}
	execer := &fakeExec{res: ExecResult{ExitCode: 1, Stdout: "1 out of 1 hunk FAILED"}}
	w := newTestWorkspace(t, git, execer)

	err := w.ApplyTestChanges(context.Background())
	var conflict *PatchConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *PatchConflictError", err)
	}
	if conflict.Changeset != "test" {
		t.Errorf("conflict changeset = %q, want test", conflict.Changeset)
	}
	if w.State() != StateBase {
		t.Errorf("state after conflict = %v, want base", w.State())
	}
}

func TestWorkspace_EmptyFixPatchIsNoop(t *testing.T) {
	git := &fakeGit{}
	w := New(t.TempDir(), "abc123", Options{Git: git, Exec: &fakeExec{}})
	if err := w.SetChangeSets("--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n", ""); err != nil {
		t.Fatalf("set changesets: %v", err)
	}
	ctx := context.Background()
	if err := w.ApplyTestChanges(ctx); err != nil {
		t.Fatalf("apply test: %v", err)
	}
	applyCalls := len(git.calls)
	if err := w.ApplyFixChanges(ctx); err != nil {
		t.Fatalf("apply empty fix: %v", err)
	}
	if len(git.calls) != applyCalls {
		t.Errorf("empty fix patch triggered git calls: %v", git.calls[applyCalls:])
	}
	if w.State() != StateFixed {
		t.Errorf("state = %v, want fixed", w.State())
	}
}

func TestShellRunner_ExitCodeAndOutput(t *testing.T) {
	var r ShellRunner
	res, err := r.Exec(context.Background(), t.TempDir(), "echo marker; echo oops >&2; exit 7", 10*time.Second)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", res.ExitCode)
	}
	if res.Stdout != "marker\n" {
		t.Errorf("stdout = %q, want marker", res.Stdout)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("stderr = %q, want oops", res.Stderr)
	}
	if res.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestShellRunner_Timeout(t *testing.T) {
	var r ShellRunner
	start := time.Now()
	res, err := r.Exec(context.Background(), t.TempDir(), "sleep 30", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if res.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitTimeout)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s, process group not killed promptly", elapsed)
	}
}

func TestWorkspace_RunIsDeterministicAfterTransitions(t *testing.T) {
	// Real shell, fake git: reset + apply then run must yield exit 1
	// regardless of prior history.
	git := &fakeGit{}
	w := newTestWorkspace(t, git, ShellRunner{})
	if err := os.MkdirAll(w.RepoDir(), 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := w.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := w.ApplyTestChanges(ctx); err != nil {
			t.Fatalf("apply test: %v", err)
		}
		res, err := w.Run(ctx, "echo marker; exit 1", 10*time.Second)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.ExitCode != 1 || res.Stdout != "marker\n" {
			t.Errorf("round %d: exit=%d stdout=%q, want exit=1 stdout=marker", i, res.ExitCode, res.Stdout)
		}
	}
}

package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// ExitTimeout is the exit code reported for a timed-out run, following the
// timeout(1) convention. It is never 0, so a hang can never read as success.
const ExitTimeout = 124

// ExecResult holds the outcome of a single command run inside the workspace.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Execer runs a shell command in a directory under a wall-clock timeout.
// Interface for testing.
type Execer interface {
	Exec(ctx context.Context, dir string, command string, timeout time.Duration) (ExecResult, error)
}

// ShellRunner implements Execer with `sh -c` in its own process group, so a
// timeout can tear down the command and everything it spawned.
type ShellRunner struct{}

func (ShellRunner) Exec(ctx context.Context, dir string, command string, timeout time.Duration) (ExecResult, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExecResult{}, fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-done:
		return ExecResult{
			ExitCode: exitCode(err),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	case <-timer:
		killGroup(cmd)
		<-done
		return ExecResult{
			ExitCode: ExitTimeout,
			TimedOut: true,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, nil
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return ExecResult{}, ctx.Err()
	}
}

// killGroup signals the whole process group so backgrounded children don't
// leak past the timeout.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/fleet-ai/swe-task-generator/internal/pipeline"
	"github.com/fleet-ai/swe-task-generator/internal/session"
)

func TestParseTarget(t *testing.T) {
	tgt, err := parseTarget("psf/requests#6149")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tgt.Repo != "psf/requests" || tgt.PRNumber != 6149 {
		t.Errorf("target = %+v", tgt)
	}

	for _, bad := range []string{"psf/requests", "requests#12", "psf/requests#0", "psf/requests#abc", ""} {
		if _, err := parseTarget(bad); err == nil {
			t.Errorf("parseTarget(%q) should fail", bad)
		}
	}
}

func TestCollectTargets_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	content := "# nightly batch\npsf/requests#6149\n\npallets/flask#99\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("file", path, "")

	targets, err := collectTargets(cmd, []string{"psf/requests#1"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3 (arg + 2 file lines)", len(targets))
	}
	if targets[1].PRNumber != 6149 || targets[2].Repo != "pallets/flask" {
		t.Errorf("targets = %+v", targets)
	}
}

func TestCollectTargets_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte("not-a-target\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := &cobra.Command{}
	cmd.Flags().String("file", path, "")
	if _, err := collectTargets(cmd, nil); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printResult(cmd, &pipeline.Result{
		InstanceID: "psf__requests-6149",
		Status:     session.StatusAccepted,
		Turns:      5,
		TaskDir:    "/tmp/tasks/psf__requests-6149",
	})
	if !strings.Contains(buf.String(), "accepted") || !strings.Contains(buf.String(), "5 turns") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	printResult(cmd, &pipeline.Result{
		InstanceID: "psf__requests-1",
		Status:     session.StatusExhausted,
		Turns:      30,
	})
	if !strings.Contains(buf.String(), "exhausted") {
		t.Errorf("output = %q", buf.String())
	}
}

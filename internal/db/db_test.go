package db

import (
	"path/filepath"
	"testing"

	"github.com/fleet-ai/swe-task-generator/internal/report"
	"github.com/fleet-ai/swe-task-generator/internal/validate"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestMigrate_Idempotent(t *testing.T) {
	d := openTestDB(t)
	if err := d.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRecordAndGetTurns(t *testing.T) {
	d := openTestDB(t)
	if err := d.RecordTurn("s-1", 1, "exec", "ls tests/"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := d.RecordTurn("s-1", 2, "submit-screened", "no test runner"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := d.RecordTurn("s-2", 1, "exec", "cat setup.py"); err != nil {
		t.Fatalf("record: %v", err)
	}

	turns, err := d.GetTurns("s-1")
	if err != nil {
		t.Fatalf("get turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Action != "exec" || turns[0].Detail != "ls tests/" {
		t.Errorf("turn 1 = %+v", turns[0])
	}
	if turns[1].Turn != 2 || turns[1].Action != "submit-screened" {
		t.Errorf("turn 2 = %+v", turns[1])
	}
}

func TestRecordAndGetAttempts(t *testing.T) {
	d := openTestDB(t)
	rejected := &validate.Verdict{
		BuggyExit: 0, FixedExit: 0, Outcome: validate.OutcomeBothPass,
		BuggySummary: report.Summary{}, FixedSummary: report.Summary{},
	}
	accepted := &validate.Verdict{
		BuggyExit: 1, FixedExit: 0, Accepted: true, Outcome: validate.OutcomeAccepted,
	}
	if err := d.RecordAttempt("s-1", 3, rejected); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := d.RecordAttempt("s-1", 5, accepted); err != nil {
		t.Fatalf("record: %v", err)
	}

	attempts, err := d.GetAttempts("s-1")
	if err != nil {
		t.Fatalf("get attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if attempts[0].Outcome != "both-pass" || attempts[0].Accepted {
		t.Errorf("attempt 1 = %+v", attempts[0])
	}
	if !attempts[1].Accepted || attempts[1].BuggyExit != 1 || attempts[1].FixedExit != 0 {
		t.Errorf("attempt 2 = %+v", attempts[1])
	}
}

func TestAcceptedTasks(t *testing.T) {
	d := openTestDB(t)
	if err := d.RecordAcceptedTask("psf__requests-6149", "psf/requests", 6149, "s-1", 5); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := d.RecordAcceptedTask("pallets__flask-99", "pallets/flask", 99, "s-2", 12); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Duplicate instance IDs are rejected by the unique constraint.
	if err := d.RecordAcceptedTask("psf__requests-6149", "psf/requests", 6149, "s-3", 1); err == nil {
		t.Error("expected unique violation for duplicate instance_id")
	}

	tasks, err := d.ListAcceptedTasks(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	// Newest first.
	if tasks[0].InstanceID != "pallets__flask-99" {
		t.Errorf("first = %+v, want the most recent", tasks[0])
	}

	limited, err := d.ListAcceptedTasks(1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d tasks, want 1", len(limited))
	}
}

func TestSessionStats(t *testing.T) {
	d := openTestDB(t)
	for i := 1; i <= 3; i++ {
		if err := d.RecordTurn("s-1", i, "exec", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.RecordAttempt("s-1", 3, &validate.Verdict{
		BuggyExit: 1, FixedExit: 0, Accepted: true, Outcome: validate.OutcomeAccepted,
	}); err != nil {
		t.Fatal(err)
	}

	stats, err := d.GetSessionStats("s-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Turns != 3 || stats.Attempts != 1 || !stats.Accepted {
		t.Errorf("stats = %+v", stats)
	}

	empty, err := d.GetSessionStats("nope")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Turns != 0 || empty.Accepted {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestReset(t *testing.T) {
	d := openTestDB(t)
	if err := d.RecordTurn("s-1", 1, "exec", ""); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	turns, err := d.GetTurns("s-1")
	if err != nil {
		t.Fatalf("get turns after reset: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns survived reset: %v", turns)
	}
}

func TestRebind(t *testing.T) {
	d := &DB{driver: "pgx"}
	got := d.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	sqlite := &DB{driver: "sqlite"}
	if sqlite.rebind("SELECT ?") != "SELECT ?" {
		t.Error("sqlite queries must pass through unchanged")
	}
}

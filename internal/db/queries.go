package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fleet-ai/swe-task-generator/internal/validate"
)

// Turn represents a row in the session_turns table.
type Turn struct {
	ID        int
	SessionID string
	Turn      int
	Action    string
	Detail    string
	Timestamp string
}

// Attempt represents a row in the validation_attempts table.
type Attempt struct {
	ID        int
	SessionID string
	Turn      int
	Outcome   string
	Accepted  bool
	BuggyExit int
	FixedExit int
	Timestamp string
}

// AcceptedTask represents a row in the accepted_tasks table.
type AcceptedTask struct {
	ID         int
	InstanceID string
	Repo       string
	PRNumber   int
	SessionID  string
	Turns      int
	Timestamp  string
}

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// RecordTurn inserts one session turn.
func (d *DB) RecordTurn(sessionID string, turn int, action string, detail string) error {
	_, err := d.conn.Exec(
		d.rebind(`INSERT INTO session_turns (session_id, turn, action, detail, timestamp) VALUES (?, ?, ?, ?, ?)`),
		sessionID, turn, action, detail, now(),
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// RecordAttempt inserts one validation attempt.
func (d *DB) RecordAttempt(sessionID string, turn int, verdict *validate.Verdict) error {
	_, err := d.conn.Exec(
		d.rebind(`INSERT INTO validation_attempts (session_id, turn, outcome, accepted, buggy_exit, fixed_exit, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		sessionID, turn, string(verdict.Outcome), verdict.Accepted, verdict.BuggyExit, verdict.FixedExit, now(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecordAcceptedTask inserts the final record for an accepted oracle.
func (d *DB) RecordAcceptedTask(instanceID string, repo string, prNumber int, sessionID string, turns int) error {
	_, err := d.conn.Exec(
		d.rebind(`INSERT INTO accepted_tasks (instance_id, repo, pr_number, session_id, turns, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		instanceID, repo, prNumber, sessionID, turns, now(),
	)
	if err != nil {
		return fmt.Errorf("record accepted task: %w", err)
	}
	return nil
}

// GetTurns returns all turns for a session in order.
func (d *DB) GetTurns(sessionID string) ([]Turn, error) {
	rows, err := d.conn.Query(
		d.rebind(`SELECT id, session_id, turn, action, detail, timestamp
		 FROM session_turns WHERE session_id = ? ORDER BY turn ASC, id ASC`),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var detail sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Turn, &t.Action, &detail, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Detail = detail.String
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// GetAttempts returns all validation attempts for a session in order.
func (d *DB) GetAttempts(sessionID string) ([]Attempt, error) {
	rows, err := d.conn.Query(
		d.rebind(`SELECT id, session_id, turn, outcome, accepted, buggy_exit, fixed_exit, timestamp
		 FROM validation_attempts WHERE session_id = ? ORDER BY turn ASC, id ASC`),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Turn, &a.Outcome, &a.Accepted, &a.BuggyExit, &a.FixedExit, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListAcceptedTasks returns accepted tasks, newest first, up to limit.
// limit <= 0 means no limit.
func (d *DB) ListAcceptedTasks(limit int) ([]AcceptedTask, error) {
	query := `SELECT id, instance_id, repo, pr_number, session_id, turns, timestamp
	 FROM accepted_tasks ORDER BY id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = d.conn.Query(d.rebind(query+" LIMIT ?"), limit)
	} else {
		rows, err = d.conn.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list accepted tasks: %w", err)
	}
	defer rows.Close()

	var tasks []AcceptedTask
	for rows.Next() {
		var t AcceptedTask
		if err := rows.Scan(&t.ID, &t.InstanceID, &t.Repo, &t.PRNumber, &t.SessionID, &t.Turns, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan accepted task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SessionStats summarizes one session's recorded activity.
type SessionStats struct {
	SessionID string
	Turns     int
	Attempts  int
	Accepted  bool
}

// GetSessionStats aggregates turn and attempt counts for a session.
func (d *DB) GetSessionStats(sessionID string) (*SessionStats, error) {
	stats := &SessionStats{SessionID: sessionID}
	err := d.conn.QueryRow(
		d.rebind(`SELECT COUNT(*) FROM session_turns WHERE session_id = ?`), sessionID,
	).Scan(&stats.Turns)
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	err = d.conn.QueryRow(
		d.rebind(`SELECT COUNT(*) FROM validation_attempts WHERE session_id = ?`), sessionID,
	).Scan(&stats.Attempts)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	var accepted int
	err = d.conn.QueryRow(
		d.rebind(`SELECT COUNT(*) FROM validation_attempts WHERE session_id = ? AND accepted`), sessionID,
	).Scan(&accepted)
	if err != nil {
		return nil, fmt.Errorf("count accepted: %w", err)
	}
	stats.Accepted = accepted > 0
	return stats, nil
}

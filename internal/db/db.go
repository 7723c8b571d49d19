// Package db persists session activity and accepted tasks. The default
// backend is an embedded SQLite file; a postgres DSN switches to pgx for
// shared fleet-wide runs.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection.
type DB struct {
	conn   *sql.DB
	driver string
}

// DefaultDSN returns ~/.swetask/swetask.db, creating the directory if needed.
func DefaultDSN() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".swetask")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "swetask.db"), nil
}

// Open opens the database. A postgres:// or postgresql:// DSN selects the
// pgx driver; anything else is treated as a SQLite file path.
func Open(dsn string) (*DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if driver == "sqlite" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// rebind converts ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) idColumn() string {
	if d.driver == "pgx" {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *DB) schema() string {
	id := d.idColumn()
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_turns (
    %s,
    session_id  TEXT NOT NULL,
    turn        INTEGER NOT NULL,
    action      TEXT NOT NULL,
    detail      TEXT,
    timestamp   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON session_turns(session_id, turn);

CREATE TABLE IF NOT EXISTS validation_attempts (
    %s,
    session_id  TEXT NOT NULL,
    turn        INTEGER NOT NULL,
    outcome     TEXT NOT NULL,
    accepted    BOOLEAN NOT NULL,
    buggy_exit  INTEGER NOT NULL,
    fixed_exit  INTEGER NOT NULL,
    timestamp   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON validation_attempts(session_id, turn);

CREATE TABLE IF NOT EXISTS accepted_tasks (
    %s,
    instance_id TEXT NOT NULL UNIQUE,
    repo        TEXT NOT NULL,
    pr_number   INTEGER NOT NULL,
    session_id  TEXT NOT NULL,
    turns       INTEGER NOT NULL,
    timestamp   TEXT NOT NULL
);
`, id, id, id)
}

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(d.schema()) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := tx.Exec(d.rebind("INSERT INTO schema_version (version, applied_at) VALUES (1, ?)"), now()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"accepted_tasks", "validation_attempts", "session_turns", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}

// splitStatements breaks the schema into single statements; pgx rejects
// multi-statement Exec inside a transaction.
func splitStatements(schema string) []string {
	var out []string
	for _, s := range strings.Split(schema, ";") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Package store persists lint run history to SQLite.
//
// Recording is optional harness infrastructure: the runner CLI can archive
// each scenario execution (pass/fail plus the full ordered diagnostic set)
// so rule authors can diff engine behavior across rule or engine versions
// without re-running old configurations.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/concordat/valetest/harness"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for lint run history.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Pass ":memory:" for an ephemeral store in tests.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement (diagnostics cascade with their run)
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Run is one recorded scenario execution.
type Run struct {
	ID        string
	Scenario  string
	Engine    string
	Pass      bool
	CreatedAt time.Time
}

// WriteRun records a scenario execution and its diagnostics in one
// transaction. A fresh run ID is generated and returned.
func (s *Store) WriteRun(ctx context.Context, scenario, engine string, pass bool, diags harness.Diagnostics) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, engine, pass, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, scenario, engine, pass, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	for i, d := range diags {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, idx, check_id, severity, line, col, match, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, d.Check, string(d.Severity), d.Line, d.Column(), d.Match, d.Message)
		if err != nil {
			return "", fmt.Errorf("write diagnostic %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns all recorded runs for a scenario, oldest first.
// Returns an empty slice (not nil) when nothing is recorded.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, engine, pass, created_at
		FROM runs
		WHERE scenario = ?
		ORDER BY created_at ASC, id ASC
	`, scenario)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var pass int
		var created string
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Engine, &pass, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Pass = pass != 0
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse run timestamp: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadDiagnostics returns a run's diagnostics in their recorded (engine)
// order.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) (harness.Diagnostics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT check_id, severity, line, col, match, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := harness.Diagnostics{}
	for rows.Next() {
		var d harness.Diagnostic
		var severity string
		var col int
		if err := rows.Scan(&d.Check, &severity, &d.Line, &col, &d.Match, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Severity = harness.Severity(severity)
		d.Span = [2]int{col, col}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/stepflow/stepflow/pkg/schema"
)

// LibSQLLog is a durable Log backed by libSQL (embedded SQLite fork).
type LibSQLLog struct {
	db *sql.DB
}

// OpenLibSQL opens a libSQL database at the given path, applies the schema,
// and returns a ready Log. The path should be a file URI, e.g.
// "file:/path/to/audit.db".
func OpenLibSQL(ctx context.Context, dbPath string) (*LibSQLLog, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	l := &LibSQLLog{db: db}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database.
func (l *LibSQLLog) Close() error { return l.db.Close() }

// AppendEvent appends an event with a monotonically increasing per-run
// sequence. The sequence read and insert run inside one transaction so
// concurrent writers cannot interleave.
func (l *LibSQLLog) AppendEvent(ctx context.Context, event *schema.Event) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, step_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.RunID, nullStr(event.StepID), event.Type, payload, event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// Events returns events for a run with sequence > since, ordered by
// sequence ASC.
func (l *LibSQLLog) Events(ctx context.Context, runID string, since int64) ([]*schema.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, step_id, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = ? AND sequence > ? ORDER BY sequence ASC`,
		runID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*schema.Event
	for rows.Next() {
		e := &schema.Event{}
		var stepID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &stepID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.StepID = stepID.String
		if payload.Valid && payload.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(payload.String), &m); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
			e.Payload = m
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// migrate creates the schema if it does not exist yet.
func (l *LibSQLLog) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_id TEXT,
			event_type TEXT NOT NULL,
			payload TEXT,
			timestamp TIMESTAMP NOT NULL,
			sequence INTEGER NOT NULL,
			UNIQUE (run_id, sequence)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events (run_id, sequence)`,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (1, 'run_events')`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit log: %w", err)
		}
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalPayload(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

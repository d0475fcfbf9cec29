// Package eventlog persists reconciliation events to a SQLite journal and
// provides read-only queries over it. The journal makes session activity
// auditable after the fact: every bus event (context updates, repository
// state changes, head movements) lands as one row.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"focal/pkg/eventbus"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	rowid      INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	workdir    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`

// Log is an append-plus-query handle on the journal database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path with production-safe
// defaults: WAL journal mode and a 5-second busy timeout, verified with a
// ping before use.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events table in %s: %w", path, err)
	}

	return &Log{db: db}, nil
}

// Append writes one bus event as a journal row.
func (l *Log) Append(ctx context.Context, evt eventbus.Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (event_id, seq, kind, workdir, created_at) VALUES (?, ?, ?, ?, ?)`,
		evt.ID.String(), evt.Seq, string(evt.Kind), evt.Workdir, evt.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", evt.Kind, err)
	}
	return nil
}

// Close releases the database connection. Safe to call twice.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Record is one journal row.
type Record struct {
	RowID     int64
	EventID   string
	Seq       uint64
	Kind      string
	Workdir   string
	CreatedAt time.Time
}

// QueryOpts filters journal queries. Zero fields do not filter.
type QueryOpts struct {
	// Kind restricts to one event kind.
	Kind eventbus.Kind

	// Workdir restricts to events for one working directory.
	Workdir string

	// After / Before bound created_at (inclusive).
	After  *time.Time
	Before *time.Time

	// Limit caps the number of rows returned, newest first. 0 means no cap.
	Limit int
}

// Query returns journal rows matching opts, newest first.
func (l *Log) Query(ctx context.Context, opts QueryOpts) ([]Record, error) {
	query, args := buildQuery(opts)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			createdAt string
		)
		if err := rows.Scan(&rec.RowID, &rec.EventID, &rec.Seq, &rec.Kind, &rec.Workdir, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// buildQuery constructs the SQL and arguments from opts.
func buildQuery(opts QueryOpts) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if opts.Workdir != "" {
		conditions = append(conditions, "workdir = ?")
		args = append(args, opts.Workdir)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format(time.RFC3339Nano))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format(time.RFC3339Nano))
	}

	query := "SELECT rowid, event_id, seq, kind, workdir, created_at FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

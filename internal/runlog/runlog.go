// Package runlog keeps a local ledger of transform outcomes in SQLite.
//
// The manifest answers "should this raw object be reprocessed"; the run
// log answers "what happened on past invocations" for operators, so it
// records every outcome including no-ops and failures. It is append-only
// and purely diagnostic: transform correctness never depends on it.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_key     TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	rows        INTEGER NOT NULL,
	partitions  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_raw_key ON runs(raw_key);
`

// Entry is one recorded transform invocation.
type Entry struct {
	RawKey     string
	Endpoint   string
	Outcome    string
	Rows       int
	Partitions int
	DurationMS int64
	At         time.Time
}

// Log is an open run ledger. Safe for concurrent use; database/sql
// serializes access to the single connection sqlite allows for writes.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at dsn, e.g. a file path
// or ":memory:".
func Open(ctx context.Context, dsn string) (*Log, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run log schema: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (raw_key, endpoint, outcome, rows, partitions, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RawKey, e.Endpoint, e.Outcome, e.Rows, e.Partitions, e.DurationMS,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record run for %s: %w", e.RawKey, err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT raw_key, endpoint, outcome, rows, partitions, duration_ms, at
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.RawKey, &e.Endpoint, &e.Outcome, &e.Rows, &e.Partitions, &e.DurationMS, &at); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Log) Close() error { return l.db.Close() }

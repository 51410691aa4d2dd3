// Package journal persists an append-only record of webhook reconcile
// actions, so operators can audit what stashhook changed and when.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
)

// Action enumerates what a reconcile run did to a repository's webhook.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionDeleted   Action = "deleted"
	ActionFailed    Action = "failed"
)

// Entry is one journal record.
type Entry struct {
	ID         int64
	Repository string // "PROJECT/slug"
	Action     Action
	WebhookID  int
	Detail     string
	Timestamp  time.Time
}

// Journal is a SQLite-backed audit journal.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type Journal struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and if needed initializes) a journal database.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.JournalError("failed to open journal database").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.JournalError("failed to initialize journal schema").
			WithCause(err).
			Build()
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		action TEXT NOT NULL,
		webhook_id INTEGER NOT NULL,
		detail TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_repository ON entries(repository);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON entries(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records one reconcile action.
func (j *Journal) Append(ctx context.Context, repository string, action Action, webhookID int, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO entries (repository, action, webhook_id, detail, timestamp) VALUES (?, ?, ?, ?, ?)",
		repository, string(action), webhookID, detail, time.Now().Unix(),
	)
	if err != nil {
		return errors.JournalError("failed to append journal entry").
			WithCause(err).
			WithContext("repository", repository).
			Build()
	}
	return nil
}

// ByRepository returns all entries for a repository in insertion order.
func (j *Journal) ByRepository(ctx context.Context, repository string) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, repository, action, webhook_id, detail, timestamp FROM entries WHERE repository = ? ORDER BY id",
		repository,
	)
	if err != nil {
		return nil, errors.JournalError("failed to query journal").WithCause(err).Build()
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent entries, newest first, capped at limit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, repository, action, webhook_id, detail, timestamp FROM entries ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.JournalError("failed to query journal").WithCause(err).Build()
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		var timestampUnix int64

		if err := rows.Scan(&e.ID, &e.Repository, &action, &e.WebhookID, &e.Detail, &timestampUnix); err != nil {
			return nil, errors.JournalError("failed to scan journal entry").WithCause(err).Build()
		}
		e.Action = Action(action)
		e.Timestamp = time.Unix(timestampUnix, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.JournalError("failed to iterate journal rows").WithCause(err).Build()
	}
	return entries, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

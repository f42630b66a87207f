package repository

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
)

// Bootstrap creates the tables the service owns. Real schema migration
// tooling lives outside this service; this keeps a fresh database (and
// the test suite) runnable.
func Bootstrap(ctx context.Context, db *dbx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			status          TEXT NOT NULL,
			pre_open_at     DATETIME NOT NULL,
			pre_close_at    DATETIME NOT NULL,
			ticket_open_at  DATETIME NOT NULL,
			ticket_close_at DATETIME NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			id         TEXT PRIMARY KEY,
			event_id   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			rank       INTEGER NOT NULL,
			status     TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			entered_at DATETIME,
			expires_at DATETIME,
			UNIQUE (event_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_entries_event_status_rank
			ON queue_entries (event_id, status, rank)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_entries_status_expires
			ON queue_entries (status, expires_at)`,
		`CREATE TABLE IF NOT EXISTS seats (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL,
			code        TEXT NOT NULL,
			grade       TEXT NOT NULL,
			price       TEXT NOT NULL,
			status      TEXT NOT NULL,
			reserved_by TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL,
			UNIQUE (event_id, code)
		)`,
		`CREATE TABLE IF NOT EXISTS registrations (
			event_id   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS draft_reservations (
			id         TEXT PRIMARY KEY,
			event_id   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			seat_id    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (event_id, user_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.NewQuery(stmt).WithContext(ctx).Execute(); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}

	return nil
}

package database

import (
	"context"
	"fmt"
)

// Schema statements for the diagnostics journal.
//
// The camera core holds no persistent state of its own; these tables record
// transition and recovery history for operator diagnostics only. The schema
// is additive: new columns get new statements, existing statements are never
// edited.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS camera_transitions (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		from_mode    TEXT NOT NULL,
		to_mode      TEXT NOT NULL,
		owner        TEXT NOT NULL,
		duration_ms  INTEGER NOT NULL,
		needs_reset  INTEGER NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_camera_transitions_created_at
		ON camera_transitions (created_at)`,
	`CREATE TABLE IF NOT EXISTS camera_resets (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		from_mode    TEXT NOT NULL,
		to_mode      TEXT NOT NULL,
		reason       TEXT NOT NULL,
		tier         INTEGER NOT NULL,
		duration_ms  INTEGER NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_camera_resets_created_at
		ON camera_resets (created_at)`,
}

// Migrate applies the journal schema to the database.
//
// All statements are idempotent (IF NOT EXISTS), so Migrate is safe to call
// on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

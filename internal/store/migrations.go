package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all memsched tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		model_name   TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		algorithm    TEXT NOT NULL DEFAULT 'hier',
		op_count     INTEGER NOT NULL DEFAULT 0,
		peak_bytes   INTEGER NOT NULL DEFAULT 0,
		iterations   INTEGER NOT NULL DEFAULT 0,
		schedule     TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_model_name ON runs(model_name)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_content_hash ON runs(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

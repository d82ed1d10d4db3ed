// Package ledger persists per-unit run completion records.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite ledger.
const schemaV1 = `
-- One row per (experiment cell, run) work unit. Written atomically when the
-- unit finishes; resume consults this table instead of trusting directory
-- contents.
CREATE TABLE IF NOT EXISTS run_records (
    unit_id TEXT PRIMARY KEY,   -- '<cell>/run<k>'
    cell TEXT NOT NULL,
    run_index INTEGER NOT NULL,
    status TEXT NOT NULL,       -- 'completed', 'failed'
    exit_code INTEGER NOT NULL DEFAULT 0,
    manifest_hash TEXT,         -- checksum of the unit's output file listing
    invocation_id TEXT,         -- coordinator invocation that produced the record
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_records_cell ON run_records(cell);
CREATE INDEX IF NOT EXISTS idx_run_records_status ON run_records(status);

-- Schema versioning
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// InitSchema initializes the ledger schema, recording the schema version on
// first creation.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_info`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version == 0 {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_info (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	} else if version > SchemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	return nil
}

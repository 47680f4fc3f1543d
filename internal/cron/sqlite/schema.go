package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT PRIMARY KEY,
		name         TEXT    NOT NULL,
		schedule     TEXT    NOT NULL,
		type         TEXT    NOT NULL,
		command      TEXT    NOT NULL DEFAULT '',
		agent_config TEXT,
		env          TEXT    NOT NULL DEFAULT '{}',
		working_dir  TEXT    NOT NULL DEFAULT '',
		timeout_ns   INTEGER NOT NULL DEFAULT 0,
		status       TEXT    NOT NULL,
		created_at   TEXT    NOT NULL,
		updated_at   TEXT    NOT NULL,
		last_run     TEXT,
		next_run     TEXT,
		run_count    INTEGER NOT NULL DEFAULT 0,
		fail_count   INTEGER NOT NULL DEFAULT 0,
		seq          INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_seq ON jobs(seq)`,

	`CREATE TABLE IF NOT EXISTS executions (
		id          TEXT PRIMARY KEY,
		job_id      TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		stdout      TEXT NOT NULL DEFAULT '',
		stderr      TEXT NOT NULL DEFAULT '',
		exit_code   INTEGER,
		status      TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		seq         INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_job ON executions(job_id, seq)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}

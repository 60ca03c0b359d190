package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrationVersion is the schema version created by InitializeDatabase.
const MigrationVersion = 2

// migrations are applied in order; migration i+1 is stored as version i+1.
var migrations = []struct {
	name       string
	statements []string
}{
	{
		name: "workflow library",
		statements: []string{
			`CREATE TABLE saved_workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				last_run TEXT,
				run_count INTEGER NOT NULL DEFAULT 0,
				is_active INTEGER NOT NULL DEFAULT 1
			);`,
			`CREATE INDEX idx_saved_workflows_updated_at ON saved_workflows(updated_at DESC);`,
			`CREATE TABLE workflow_snapshots (
				workflow_id TEXT PRIMARY KEY REFERENCES saved_workflows(id) ON DELETE CASCADE,
				data TEXT NOT NULL
			);`,
		},
	},
	{
		name: "run history",
		statements: []string{
			`CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				entry_points TEXT NOT NULL DEFAULT '[]',
				succeeded INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT ''
			);`,
			`CREATE INDEX idx_runs_workflow_id ON runs(workflow_id, started_at DESC);`,
			`CREATE TABLE execution_logs (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				seq INTEGER NOT NULL,
				workflow_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				phase TEXT NOT NULL,
				data TEXT,
				error TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE INDEX idx_execution_logs_run_id ON execution_logs(run_id, seq);`,
		},
	},
}

// InitializeDatabase brings the schema up to MigrationVersion. Each migration
// runs in its own transaction and is recorded in the migrations table.
func InitializeDatabase(ctx context.Context, db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		if err := applyMigration(ctx, db, i+1); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", i+1, migrations[i].name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range migrations[version-1].statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

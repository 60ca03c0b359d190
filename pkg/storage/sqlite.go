package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// SQLiteRepository stores the workflow library and run history in a SQLite
// database. Index entry and snapshot are written in one transaction.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates its schema.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := InitializeDatabase(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const savedColumns = `id, name, description, tags, created_at, updated_at, last_run, run_count, is_active`

// ListSaved returns the index, most recently updated first.
func (r *SQLiteRepository) ListSaved(ctx context.Context) ([]workflow.SavedWorkflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+savedColumns+` FROM saved_workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []workflow.SavedWorkflow{}
	for rows.Next() {
		entry, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}
	return out, nil
}

// LoadFull reads the snapshot of id.
func (r *SQLiteRepository) LoadFull(ctx context.Context, id types.WorkflowID) (*workflow.Workflow, error) {
	entry, err := scanSaved(r.db.QueryRowContext(ctx,
		`SELECT `+savedColumns+` FROM saved_workflows WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var data string
	err = r.db.QueryRowContext(ctx, `SELECT data FROM workflow_snapshots WHERE workflow_id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(data), &wf); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return withIndex(&wf, entry), nil
}

// SaveFull upserts the index entry and snapshot of wf in one transaction.
func (r *SQLiteRepository) SaveFull(ctx context.Context, wf *workflow.Workflow) (workflow.SavedWorkflow, error) {
	if wf == nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("cannot save nil workflow")
	}
	snap := wf.Clone()
	snap.PrepareSave(time.Now().UTC())
	entry := snap.Summary()

	data, err := json.Marshal(snap)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO saved_workflows (`+savedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			tags = excluded.tags,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			last_run = excluded.last_run,
			run_count = excluded.run_count,
			is_active = excluded.is_active`,
		entry.ID.String(), entry.Name, entry.Description, string(tags),
		formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt), nullTime(entry.LastRun),
		entry.RunCount, entry.IsActive,
	)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to save index entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_snapshots (workflow_id, data) VALUES (?, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET data = excluded.data`,
		entry.ID.String(), string(data),
	)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return entry, nil
}

// DeleteSaved removes the index entry, the snapshot and the run history of id.
func (r *SQLiteRepository) DeleteSaved(ctx context.Context, id types.WorkflowID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM saved_workflows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}

	stmts := []string{
		`DELETE FROM workflow_snapshots WHERE workflow_id = ?`,
		`DELETE FROM execution_logs WHERE run_id IN (SELECT id FROM runs WHERE workflow_id = ?)`,
		`DELETE FROM runs WHERE workflow_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id.String()); err != nil {
			return fmt.Errorf("failed to delete workflow data: %w", err)
		}
	}
	return tx.Commit()
}

// RecordRun applies run bookkeeping to the index entry of id.
func (r *SQLiteRepository) RecordRun(ctx context.Context, id types.WorkflowID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE saved_workflows
		SET last_run = ?, updated_at = ?, run_count = run_count + 1
		WHERE id = ?`,
		formatTime(at), formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	return nil
}

// AppendRun stores a run and its log in one transaction.
func (r *SQLiteRepository) AppendRun(ctx context.Context, run *execution.Run) error {
	if run == nil {
		return fmt.Errorf("cannot append nil run")
	}
	entryPoints, err := json.Marshal(run.EntryPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal entry points: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var completedAt sql.NullString
	if !run.CompletedAt.IsZero() {
		completedAt = sql.NullString{String: formatTime(run.CompletedAt), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, status, started_at, completed_at, entry_points, succeeded, failed, skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.WorkflowID.String(), string(run.Status), formatTime(run.StartedAt), completedAt,
		string(entryPoints), run.Succeeded, run.Failed, run.Skipped, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO execution_logs (id, run_id, seq, workflow_id, node_id, timestamp, phase, data, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, entry := range run.Logs {
		var data sql.NullString
		if entry.Data != nil {
			raw, err := json.Marshal(entry.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal log data: %w", err)
			}
			data = sql.NullString{String: string(raw), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			entry.ID.String(), run.ID.String(), i, entry.WorkflowID.String(), entry.NodeID.String(),
			formatTime(entry.Timestamp), string(entry.Phase), data, entry.Error, entry.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const runColumns = `id, workflow_id, status, started_at, completed_at, entry_points, succeeded, failed, skipped, error`

// ListRuns returns the runs of a workflow, most recent first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, workflowID types.WorkflowID, limit int) ([]*execution.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE workflow_id = ? ORDER BY started_at DESC`
	args := []any{workflowID.String()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []*execution.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	_ = rows.Close()

	for _, run := range runs {
		if run.Logs, err = r.loadLogs(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LoadRun returns one run including its log.
func (r *SQLiteRepository) LoadRun(ctx context.Context, id types.RunID) (*execution.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", execution.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if run.Logs, err = r.loadLogs(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *SQLiteRepository) loadLogs(ctx context.Context, runID types.RunID) ([]execution.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, node_id, timestamp, phase, data, error, duration_ms
		FROM execution_logs WHERE run_id = ? ORDER BY seq`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	logs := []execution.LogEntry{}
	for rows.Next() {
		var (
			entry      execution.LogEntry
			timestamp  string
			data       sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&entry.ID, &entry.WorkflowID, &entry.NodeID, &timestamp, &entry.Phase, &data, &entry.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &entry.Data); err != nil {
				return nil, fmt.Errorf("failed to parse log data: %w", err)
			}
		}
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution logs: %w", err)
	}
	return logs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSaved(s scanner) (workflow.SavedWorkflow, error) {
	var (
		entry              workflow.SavedWorkflow
		tags               string
		createdAt, updated string
		lastRun            sql.NullString
	)
	err := s.Scan(&entry.ID, &entry.Name, &entry.Description, &tags, &createdAt, &updated, &lastRun, &entry.RunCount, &entry.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, err
	}
	if err != nil {
		return entry, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return entry, fmt.Errorf("failed to parse tags: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return entry, err
	}
	if entry.UpdatedAt, err = parseTime(updated); err != nil {
		return entry, err
	}
	if lastRun.Valid {
		t, err := parseTime(lastRun.String)
		if err != nil {
			return entry, err
		}
		entry.LastRun = &t
	}
	return entry, nil
}

func scanRun(s scanner) (*execution.Run, error) {
	var (
		run         execution.Run
		startedAt   string
		completedAt sql.NullString
		entryPoints string
	)
	err := s.Scan(&run.ID, &run.WorkflowID, &run.Status, &startedAt, &completedAt, &entryPoints,
		&run.Succeeded, &run.Failed, &run.Skipped, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		if run.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(entryPoints), &run.EntryPoints); err != nil {
		return nil, fmt.Errorf("failed to parse entry points: %w", err)
	}
	return &run, nil
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction so that stored
// timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

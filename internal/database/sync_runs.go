package database

import (
	"context"
	"database/sql"
	"fmt"

	"storebridge/internal/models"
)

// CreateSyncRun inserts a run row at invocation start.
func (db *DB) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `INSERT INTO sync_runs (id, tenant_id, started_at, finished_at, batches, total_forwarded, status, failed_batch, error)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.db.ExecContext(ctx, query,
		run.ID,
		run.TenantID,
		run.StartedAt,
		run.FinishedAt,
		run.Batches,
		run.TotalForwarded,
		run.Status,
		run.FailedBatch,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// FinalizeSyncRun records the terminal state of a run. Called exactly once per run.
func (db *DB) FinalizeSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `UPDATE sync_runs SET finished_at = ?, batches = ?, total_forwarded = ?, status = ?, failed_batch = ?, error = ?
              WHERE id = ?`
	_, err := db.db.ExecContext(ctx, query,
		run.FinishedAt,
		run.Batches,
		run.TotalForwarded,
		run.Status,
		run.FailedBatch,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize sync run: %w", err)
	}
	return nil
}

// GetSyncRun returns one run by id, or nil when unknown.
func (db *DB) GetSyncRun(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `SELECT id, tenant_id, started_at, finished_at, batches, total_forwarded, status, failed_batch, error
              FROM sync_runs WHERE id = ?`

	var run models.SyncRun
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.TenantID, &run.StartedAt, &run.FinishedAt,
		&run.Batches, &run.TotalForwarded, &run.Status, &run.FailedBatch, &run.Error,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return &run, nil
}

// GetSyncRuns returns the most recent runs, optionally filtered by tenant.
func (db *DB) GetSyncRuns(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, tenant_id, started_at, finished_at, batches, total_forwarded, status, failed_batch, error
              FROM sync_runs`
	args := []interface{}{}
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		err := rows.Scan(
			&r.ID, &r.TenantID, &r.StartedAt, &r.FinishedAt,
			&r.Batches, &r.TotalForwarded, &r.Status, &r.FailedBatch, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

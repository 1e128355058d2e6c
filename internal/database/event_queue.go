package database

import (
	"context"
	"fmt"
	"time"

	"storebridge/internal/models"
)

// CreateEventTask persists an inbound checkout event for processing.
func (db *DB) CreateEventTask(ctx context.Context, task *models.EventTask) error {
	query := `INSERT INTO event_queue (task_id, tenant_id, cart_token, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query,
		task.TaskID,
		task.TenantID,
		task.CartToken,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

// GetPendingEventTasks returns tasks ready to process, oldest first.
func (db *DB) GetPendingEventTasks(ctx context.Context, limit int) ([]models.EventTask, error) {
	query := `SELECT id, task_id, tenant_id, cart_token, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM event_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending event tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.EventTask
	for rows.Next() {
		var t models.EventTask
		err := rows.Scan(
			&t.ID, &t.TaskID, &t.TenantID, &t.CartToken, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateEventTaskStatus transitions a task; retry bumps retry_count,
// terminal states record processed_at.
func (db *DB) UpdateEventTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE event_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE event_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE event_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	_, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event task status: %w", err)
	}
	return nil
}

// GetFailedEventTasks returns tasks that exhausted processing, newest first.
func (db *DB) GetFailedEventTasks(ctx context.Context) ([]models.EventTask, error) {
	query := `SELECT id, task_id, tenant_id, cart_token, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM event_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed event tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.EventTask
	for rows.Next() {
		var t models.EventTask
		err := rows.Scan(
			&t.ID, &t.TaskID, &t.TenantID, &t.CartToken, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

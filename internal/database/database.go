package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storebridge/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            started_at DATETIME NOT NULL,
            finished_at DATETIME,
            batches INTEGER NOT NULL DEFAULT 0,
            total_forwarded INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL,
            failed_batch INTEGER NOT NULL DEFAULT 0,
            error TEXT
        )`,

		`CREATE TABLE IF NOT EXISTS event_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_id TEXT UNIQUE NOT NULL,
            tenant_id TEXT NOT NULL,
            cart_token TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_sync_runs_tenant_id ON sync_runs(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_event_queue_status ON event_queue(status)`,
		`CREATE INDEX IF NOT EXISTS idx_event_queue_tenant_id ON event_queue(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_event_queue_cart_token ON event_queue(cart_token)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %v", query, err)
		}
	}
	return nil
}

// UpsertTenant creates or refreshes one tenant row.
func (db *DB) UpsertTenant(ctx context.Context, tenant *models.Tenant) error {
	query := `INSERT INTO tenants (id, name, created_at, updated_at)
              VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`
	now := time.Now()
	_, err := db.db.ExecContext(ctx, query, tenant.ID, tenant.Name, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}
	return nil
}

// GetTenant returns the tenant by id, or nil when unknown.
func (db *DB) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT id, name, created_at, updated_at FROM tenants WHERE id = ?`

	var tenant models.Tenant
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetAllTenants returns every registered tenant ordered by id.
func (db *DB) GetAllTenants(ctx context.Context) ([]models.Tenant, error) {
	query := `SELECT id, name, created_at, updated_at FROM tenants ORDER BY id ASC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (db *DB) Close() error {
	return db.db.Close()
}

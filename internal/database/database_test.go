package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"storebridge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	return db
}

func TestTenantsCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	tenant := &models.Tenant{ID: "shop-1", Name: "Shop One"}
	require.NoError(t, db.UpsertTenant(ctx, tenant))

	got, err := db.GetTenant(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Shop One", got.Name)

	// Upsert with same id updates the name
	tenant.Name = "Shop One Renamed"
	require.NoError(t, db.UpsertTenant(ctx, tenant))

	got, err = db.GetTenant(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "Shop One Renamed", got.Name)

	// Unknown tenant returns nil, no error
	got, err = db.GetTenant(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.UpsertTenant(ctx, &models.Tenant{ID: "shop-2", Name: "Shop Two"}))
	all, err := db.GetAllTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "shop-1", all[0].ID)
}

func TestSyncRunsLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	run := &models.SyncRun{
		ID:        "run-1",
		TenantID:  "shop-1",
		StartedAt: time.Now(),
		Status:    models.RunStatusFailed,
	}
	require.NoError(t, db.CreateSyncRun(ctx, run))

	finished := time.Now()
	run.FinishedAt = &finished
	run.Batches = 3
	run.TotalForwarded = 120
	run.Status = models.RunStatusSuccess
	require.NoError(t, db.FinalizeSyncRun(ctx, run))

	got, err := db.GetSyncRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RunStatusSuccess, got.Status)
	assert.Equal(t, 120, got.TotalForwarded)
	assert.Equal(t, 3, got.Batches)
	require.NotNil(t, got.FinishedAt)

	got, err = db.GetSyncRun(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetSyncRunsFilterAndLimit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, tenantID := range []string{"shop-1", "shop-1", "shop-2"} {
		run := &models.SyncRun{
			ID:        "run-" + tenantID + "-" + time.Duration(i).String(),
			TenantID:  tenantID,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    models.RunStatusSuccess,
		}
		require.NoError(t, db.CreateSyncRun(ctx, run))
	}

	runs, err := db.GetSyncRuns(ctx, "shop-1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = db.GetSyncRuns(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	// Newest first
	assert.Equal(t, "shop-2", runs[0].TenantID)
}

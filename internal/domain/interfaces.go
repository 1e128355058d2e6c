package domain

import (
	"context"
	"time"

	"storebridge/internal/models"
)

// CredentialStore resolves the outbound bearer credential for a tenant.
// Get returns ok=false when the tenant has no credential stored; that
// is not an error.
type CredentialStore interface {
	Get(ctx context.Context, tenantID string) (credential string, ok bool, err error)
	Set(ctx context.Context, tenantID, credential string) error
	Delete(ctx context.Context, tenantID string) error
}

// PageSource is the upstream paged customer collection. A nil cursor
// means "from the start". The source may cap pageSize silently; the
// returned batch order must be preserved by callers.
type PageSource interface {
	NextPage(ctx context.Context, cursor *models.PageCursor, pageSize int) ([]models.CustomerRecord, models.PageCursor, error)
}

// SinkClient is the shared external sink used by both the batch
// dispatcher and the abandonment notifier. Implementations attach the
// bearer credential and classify the result; they never retry.
type SinkClient interface {
	SendCustomerBatch(ctx context.Context, credential string, payload models.CustomerBatchPayload) models.BatchOutcome
	SendAbandonment(ctx context.Context, credential string, payload models.AbandonmentNotification) models.BatchOutcome
}

// RunStore persists sync run history.
type RunStore interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinalizeSyncRun(ctx context.Context, run *models.SyncRun) error
	GetSyncRuns(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error)
}

// TenantStore is the tenant registry.
type TenantStore interface {
	UpsertTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetAllTenants(ctx context.Context) ([]models.Tenant, error)
}

// EventQueueStore persists inbound checkout events for the worker.
type EventQueueStore interface {
	CreateEventTask(ctx context.Context, task *models.EventTask) error
	GetPendingEventTasks(ctx context.Context, limit int) ([]models.EventTask, error)
	UpdateEventTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedEventTasks(ctx context.Context) ([]models.EventTask, error)
}

// EventPublisher fans an event out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Detector evaluates one checkout event and drives the notification path.
type Detector interface {
	Process(ctx context.Context, tenant models.Tenant, event models.CheckoutEvent, now time.Time) DetectorResult
}

// DetectorResult reports one evaluation. SkippedNoCredential is set
// when the checkout was abandoned but no credential was available for
// the notification; NotifyErr is set when the delivery itself failed.
// Both are distinct and neither invalidates the decision.
type DetectorResult struct {
	Decision            models.AbandonmentDecision
	Notified            bool
	SkippedNoCredential bool
	NotifyErr           error
}

// RunLock is an opt-in per-tenant lease preventing overlapping sync
// runs. Acquire returns false when another run holds the lease.
type RunLock interface {
	Acquire(ctx context.Context, tenantID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tenantID string) error
}

// AlertSender pushes operator alerts about terminal failures.
type AlertSender interface {
	SyncRunFailed(ctx context.Context, run *models.SyncRun) error
}

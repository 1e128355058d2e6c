package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"storebridge/internal/domain"
	"storebridge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueueStore struct {
	mu      sync.Mutex
	created []models.EventTask
	updates []statusUpdate
	nextID  int64
}

type statusUpdate struct {
	id     int64
	status string
	errMsg string
}

func (s *fakeQueueStore) CreateEventTask(_ context.Context, task *models.EventTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	s.created = append(s.created, *task)
	return nil
}

func (s *fakeQueueStore) GetPendingEventTasks(_ context.Context, _ int) ([]models.EventTask, error) {
	return nil, nil
}

func (s *fakeQueueStore) GetFailedEventTasks(_ context.Context) ([]models.EventTask, error) {
	return nil, nil
}

func (s *fakeQueueStore) UpdateEventTaskStatus(_ context.Context, id int64, status, errMsg string, _ *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{id: id, status: status, errMsg: errMsg})
	return nil
}

func (s *fakeQueueStore) lastUpdate(t *testing.T) statusUpdate {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.updates)
	return s.updates[len(s.updates)-1]
}

type fakeTenantStore struct {
	tenants map[string]models.Tenant
	err     error
}

func (s *fakeTenantStore) UpsertTenant(_ context.Context, _ *models.Tenant) error { return nil }

func (s *fakeTenantStore) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tenants[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *fakeTenantStore) GetAllTenants(_ context.Context) ([]models.Tenant, error) {
	return nil, nil
}

type fakeDetector struct {
	mu     sync.Mutex
	calls  []models.CheckoutEvent
	result domain.DetectorResult
}

func (d *fakeDetector) Process(_ context.Context, _ models.Tenant, event models.CheckoutEvent, _ time.Time) domain.DetectorResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, event)
	return d.result
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newTestWorker(store *fakeQueueStore, tenants *fakeTenantStore, det *fakeDetector) *EventWorker {
	logger := zerolog.Nop()
	return NewEventWorker(store, tenants, det, nil, RetryPolicy{}, &logger)
}

func checkoutPayload(t *testing.T, token string, updatedAt time.Time) string {
	t.Helper()
	data, err := json.Marshal(models.CheckoutEvent{
		CartToken: token,
		UpdatedAt: updatedAt,
	})
	require.NoError(t, err)
	return string(data)
}

func TestEnqueueEventPersistsBeforeScheduling(t *testing.T) {
	store := &fakeQueueStore{}
	w := newTestWorker(store, &fakeTenantStore{}, &fakeDetector{})

	err := w.EnqueueEvent(context.Background(), "shop-1", "cart-1", []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, "shop-1", store.created[0].TenantID)
	assert.Equal(t, models.TaskStatusPending, store.created[0].Status)
	assert.NotEmpty(t, store.created[0].TaskID)

	// Without redis the task must land on the in-memory queue.
	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	assert.Equal(t, "cart-1", task.CartToken)
}

func TestEnqueueEventRejectsMissingFields(t *testing.T) {
	w := newTestWorker(&fakeQueueStore{}, &fakeTenantStore{}, &fakeDetector{})

	assert.Error(t, w.EnqueueEvent(context.Background(), "", "cart-1", nil))
	assert.Error(t, w.EnqueueEvent(context.Background(), "shop-1", "", nil))
}

func TestProcessTaskInvokesDetectorOnce(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{result: domain.DetectorResult{Notified: true}}
	tenants := &fakeTenantStore{tenants: map[string]models.Tenant{
		"shop-1": {ID: "shop-1", Name: "Shop One"},
	}}
	w := newTestWorker(store, tenants, det)

	task := models.EventTask{
		ID:       1,
		TenantID: "shop-1",
		Payload:  checkoutPayload(t, "cart-1", time.Now().Add(-2*time.Hour)),
	}
	w.processTask(context.Background(), &task)

	assert.Equal(t, 1, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusCompleted, up.status)
	assert.Empty(t, up.errMsg)
}

func TestProcessTaskNotificationFailureStillCompletes(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{result: domain.DetectorResult{
		Decision:  models.AbandonmentDecision{Abandoned: true, ElapsedMinutes: 90},
		NotifyErr: errors.New("sink returned 500"),
	}}
	tenants := &fakeTenantStore{tenants: map[string]models.Tenant{
		"shop-1": {ID: "shop-1"},
	}}
	w := newTestWorker(store, tenants, det)

	task := models.EventTask{
		ID:       7,
		TenantID: "shop-1",
		Payload:  checkoutPayload(t, "cart-1", time.Now().Add(-2*time.Hour)),
	}
	w.processTask(context.Background(), &task)

	// The delivery failure is recorded but the task is done: no retry.
	assert.Equal(t, 1, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusCompleted, up.status)
	assert.Contains(t, up.errMsg, "sink returned 500")
}

func TestProcessTaskSkippedNoCredentialRecorded(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{result: domain.DetectorResult{
		Decision:            models.AbandonmentDecision{Abandoned: true, ElapsedMinutes: 61},
		SkippedNoCredential: true,
	}}
	tenants := &fakeTenantStore{tenants: map[string]models.Tenant{
		"shop-1": {ID: "shop-1"},
	}}
	w := newTestWorker(store, tenants, det)

	task := models.EventTask{
		ID:       3,
		TenantID: "shop-1",
		Payload:  checkoutPayload(t, "cart-1", time.Now().Add(-2*time.Hour)),
	}
	w.processTask(context.Background(), &task)

	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusCompleted, up.status)
	assert.Contains(t, up.errMsg, "no credential")
}

func TestProcessTaskUndecodablePayloadFails(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{}
	w := newTestWorker(store, &fakeTenantStore{}, det)

	task := models.EventTask{ID: 2, TenantID: "shop-1", Payload: "{not json"}
	w.processTask(context.Background(), &task)

	assert.Equal(t, 0, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusFailed, up.status)
}

func TestProcessTaskInvalidEventFails(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{}
	tenants := &fakeTenantStore{tenants: map[string]models.Tenant{"shop-1": {ID: "shop-1"}}}
	w := newTestWorker(store, tenants, det)

	// Valid JSON, but no cart token.
	task := models.EventTask{
		ID:       4,
		TenantID: "shop-1",
		Payload:  checkoutPayload(t, "", time.Now()),
	}
	w.processTask(context.Background(), &task)

	assert.Equal(t, 0, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusFailed, up.status)
}

func TestProcessTaskUnknownTenantFails(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{}
	w := newTestWorker(store, &fakeTenantStore{tenants: map[string]models.Tenant{}}, det)

	task := models.EventTask{
		ID:       5,
		TenantID: "ghost",
		Payload:  checkoutPayload(t, "cart-1", time.Now()),
	}
	w.processTask(context.Background(), &task)

	assert.Equal(t, 0, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusFailed, up.status)
}

func TestProcessTaskStorageErrorSchedulesRetry(t *testing.T) {
	store := &fakeQueueStore{}
	det := &fakeDetector{}
	tenants := &fakeTenantStore{err: errors.New("database is locked")}
	w := newTestWorker(store, tenants, det)

	task := models.EventTask{
		ID:       6,
		TenantID: "shop-1",
		Payload:  checkoutPayload(t, "cart-1", time.Now()),
	}
	w.processTask(context.Background(), &task)

	assert.Equal(t, 0, det.callCount())
	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusRetry, up.status)
	assert.Contains(t, up.errMsg, "database is locked")
}

func TestProcessTaskStorageErrorExhaustsRetries(t *testing.T) {
	store := &fakeQueueStore{}
	tenants := &fakeTenantStore{err: errors.New("disk I/O error")}
	w := newTestWorker(store, tenants, &fakeDetector{})

	task := models.EventTask{
		ID:         8,
		TenantID:   "shop-1",
		RetryCount: w.retryPolicy.MaxRetries - 1,
		Payload:    checkoutPayload(t, "cart-1", time.Now()),
	}
	w.processTask(context.Background(), &task)

	up := store.lastUpdate(t)
	assert.Equal(t, models.TaskStatusFailed, up.status)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 30*time.Second, p.NextDelay(10))
}

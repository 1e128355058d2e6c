package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storebridge/internal/domain"
	"storebridge/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds how long the worker keeps re-scheduling a task
// after transient storage errors. Delivery outcomes are final and are
// never fed back through this policy.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the wait before the given attempt (1-based),
// doubling per the factor and clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor < 1 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	return delay
}

// EventWorker consumes queued checkout events and runs each one through
// the abandonment detector exactly once per delivery. Events are pulled
// from the in-memory queue first, then redis, then the database poller;
// every event is persisted before it is scheduled, so a crash never
// loses one. Notification failures are recorded but never retried: the
// event is acknowledged regardless of delivery outcome.
type EventWorker struct {
	store         domain.EventQueueStore
	tenants       domain.TenantStore
	detector      domain.Detector
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.EventTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewEventWorker builds a worker with sane defaults.
func NewEventWorker(store domain.EventQueueStore, tenants domain.TenantStore, detector domain.Detector, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *EventWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &EventWorker{
		store:         store,
		tenants:       tenants,
		detector:      detector,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.EventTask, models.WorkerQueueSize),
		redisQueueKey: "checkouts:queue",
		deadLetterKey: "checkouts:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueEvent persists the raw checkout payload and schedules it via
// redis or the in-memory queue.
func (w *EventWorker) EnqueueEvent(ctx context.Context, tenantID, cartToken string, payload []byte) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	if cartToken == "" {
		return errors.New("cart token is required")
	}

	task := models.EventTask{
		TaskID:    uuid.NewString(),
		TenantID:  tenantID,
		CartToken: cartToken,
		Payload:   string(payload),
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	if err := w.store.CreateEventTask(ctx, &task); err != nil {
		return fmt.Errorf("persist event task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("event_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("event_worker: in-memory queue full, task left to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *EventWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("event_worker: started")
	defer w.logger.Info().Msg("event_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingEventTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("event_worker: fetch pending")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *EventWorker) tryLocalQueue() (models.EventTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.EventTask{}, false
	}
}

func (w *EventWorker) tryRedis(ctx context.Context) (models.EventTask, bool) {
	if w.redis == nil {
		return models.EventTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.EventTask{}, false
		}
		w.logger.Error().Err(err).Msg("event_worker: redis BRPOP error")
		return models.EventTask{}, false
	}
	if len(res) != 2 {
		return models.EventTask{}, false
	}
	var task models.EventTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("event_worker: decode redis task")
		return models.EventTask{}, false
	}
	return task, true
}

func (w *EventWorker) processTask(ctx context.Context, task *models.EventTask) {
	var event models.CheckoutEvent
	if err := json.Unmarshal([]byte(task.Payload), &event); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}
	if err := event.Validate(); err != nil {
		w.failTask(ctx, task, err)
		return
	}

	tenant, err := w.tenants.GetTenant(ctx, task.TenantID)
	if err != nil {
		// Transient storage error: the event itself is fine, retry later.
		w.retryOrFail(ctx, task, err)
		return
	}
	if tenant == nil {
		w.failTask(ctx, task, fmt.Errorf("unknown tenant: %s", task.TenantID))
		return
	}

	result := w.detector.Process(ctx, *tenant, event, time.Now())

	// The event is acknowledged whatever the notification outcome; a
	// failed or skipped delivery is recorded, not redelivered.
	note := ""
	switch {
	case result.NotifyErr != nil:
		note = result.NotifyErr.Error()
	case result.SkippedNoCredential:
		note = "notification skipped: no credential"
	}
	if err := w.store.UpdateEventTaskStatus(ctx, task.ID, models.TaskStatusCompleted, note, nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: mark completed")
	}
}

func (w *EventWorker) retryOrFail(ctx context.Context, task *models.EventTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.store.UpdateEventTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: mark failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.store.UpdateEventTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: mark retry")
	}
}

func (w *EventWorker) failTask(ctx context.Context, task *models.EventTask, cause error) {
	if err := w.store.UpdateEventTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *EventWorker) pushRedis(ctx context.Context, task models.EventTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *EventWorker) pushDeadLetter(ctx context.Context, task *models.EventTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("event_worker: deadletter push")
	}
}

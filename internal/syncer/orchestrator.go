package syncer

import (
	"context"
	"fmt"
	"time"

	"storebridge/internal/domain"
	"storebridge/internal/metrics"
	"storebridge/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator composes the walker and dispatcher into one run. It
// never returns an error: every outcome is encoded in the SyncRun and
// callers branch on its status.
type Orchestrator struct {
	creds      domain.CredentialStore
	source     domain.PageSource
	dispatcher *Dispatcher
	runs       domain.RunStore
	alerts     domain.AlertSender
	logger     *zerolog.Logger
}

func NewOrchestrator(creds domain.CredentialStore, source domain.PageSource, dispatcher *Dispatcher, runs domain.RunStore, logger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		creds:      creds,
		source:     source,
		dispatcher: dispatcher,
		runs:       runs,
		logger:     logger,
	}
}

// SetAlerts wires an optional operator alert channel for failed runs.
func (o *Orchestrator) SetAlerts(alerts domain.AlertSender) {
	o.alerts = alerts
}

// Run executes one full synchronization for the tenant. Batches are
// strictly sequential: batch n+1 is never fetched before batch n's
// outcome is known, because its cursor depends on the previous fetch.
func (o *Orchestrator) Run(ctx context.Context, tenant models.Tenant, pageSize int) *models.SyncRun {
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		TenantID:  tenant.ID,
		StartedAt: time.Now(),
		Status:    models.RunStatusFailed,
	}
	o.persistStart(ctx, run)

	if pageSize <= 0 {
		run.Error = ErrInvalidPageSize.Error()
		return o.finalize(ctx, run)
	}

	credential, ok, err := o.creds.Get(ctx, tenant.ID)
	if err != nil {
		run.Error = fmt.Sprintf("credential lookup: %v", err)
		return o.finalize(ctx, run)
	}
	if !ok {
		run.Error = ErrNoCredential.Error()
		return o.finalize(ctx, run)
	}

	walker := NewWalker(o.source, pageSize)

	var cursor *models.PageCursor
	for {
		batch, next, err := walker.NextBatch(ctx, cursor)
		if err != nil {
			run.FailedBatch = run.Batches + 1
			run.Status = models.RunStatusFailed
			run.Error = err.Error()
			return o.finalize(ctx, run)
		}

		// An empty batch is exhaustion even when the cursor claims more
		// pages; empty batches are never dispatched.
		if len(batch) == 0 {
			run.Status = models.RunStatusSuccess
			return o.finalize(ctx, run)
		}

		run.Batches++
		outcome, err := o.dispatcher.Send(ctx, batch, tenant, run.Batches, credential)
		if err != nil {
			run.FailedBatch = run.Batches
			run.Status = models.RunStatusFailed
			run.Error = err.Error()
			return o.finalize(ctx, run)
		}
		if !outcome.OK() {
			run.FailedBatch = run.Batches
			if run.TotalForwarded > 0 {
				run.Status = models.RunStatusPartial
			} else {
				run.Status = models.RunStatusFailed
			}
			run.Error = dispatchError(outcome, run.Batches)
			return o.finalize(ctx, run)
		}

		run.TotalForwarded += len(batch)

		if Exhausted(batch, next) {
			run.Status = models.RunStatusSuccess
			return o.finalize(ctx, run)
		}
		cursor = &next
	}
}

func dispatchError(outcome models.BatchOutcome, seq int) string {
	if outcome.Status == models.OutcomeRejected {
		return fmt.Sprintf("batch %d rejected by sink (status %d)", seq, outcome.HTTPStatus)
	}
	return fmt.Sprintf("batch %d failed: sink unreachable", seq)
}

func (o *Orchestrator) persistStart(ctx context.Context, run *models.SyncRun) {
	if o.runs == nil {
		return
	}
	if err := o.runs.CreateSyncRun(ctx, run); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("persist run start failed")
	}
}

// finalize stamps the terminal state exactly once and reports it.
// Persistence failures are logged; they never change the returned run.
func (o *Orchestrator) finalize(ctx context.Context, run *models.SyncRun) *models.SyncRun {
	now := time.Now()
	run.FinishedAt = &now

	metrics.ObserveRun(run.Status, run.TotalForwarded)

	logEvent := o.logger.Info()
	if run.Failed() {
		logEvent = o.logger.Warn()
	}
	logEvent.
		Str("run_id", run.ID).
		Str("tenant_id", run.TenantID).
		Str("status", run.Status).
		Int("batches", run.Batches).
		Int("total_forwarded", run.TotalForwarded).
		Str("error", run.Error).
		Msg("sync run finished")

	if o.runs != nil {
		if err := o.runs.FinalizeSyncRun(ctx, run); err != nil {
			o.logger.Error().Err(err).Str("run_id", run.ID).Msg("persist run result failed")
		}
	}

	if run.Failed() && o.alerts != nil {
		if err := o.alerts.SyncRunFailed(ctx, run); err != nil {
			o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failure alert not delivered")
		}
	}

	return run
}

package syncer

import (
	"context"
	"fmt"

	"storebridge/internal/domain"
	"storebridge/internal/metrics"
	"storebridge/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher forwards one batch per call to the external sink with the
// run's bearer credential attached. Exactly one outbound call per
// batch, nothing persisted, no retry; the outcome classification is
// the caller's to act on.
type Dispatcher struct {
	sink   domain.SinkClient
	logger *zerolog.Logger
}

func NewDispatcher(sink domain.SinkClient, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger}
}

// Send delivers the batch as sequence seq of the tenant's run.
// A missing credential refuses dispatch before any network call.
func (d *Dispatcher) Send(ctx context.Context, batch []models.CustomerRecord, tenant models.Tenant, seq int, credential string) (models.BatchOutcome, error) {
	if seq < 1 {
		return models.BatchOutcome{}, fmt.Errorf("sequence number must be positive, got %d", seq)
	}
	if credential == "" {
		return models.BatchOutcome{}, ErrNoCredential
	}

	payload := models.CustomerBatchPayload{
		TenantID:  tenant.ID,
		Sequence:  seq,
		Customers: batch,
	}

	outcome := d.sink.SendCustomerBatch(ctx, credential, payload)
	metrics.IncDispatch(outcome.Status)

	if !outcome.OK() {
		d.logger.Warn().
			Str("tenant_id", tenant.ID).
			Int("sequence", seq).
			Int("batch_size", len(batch)).
			Str("outcome", outcome.Status).
			Int("http_status", outcome.HTTPStatus).
			Msg("batch dispatch failed")
	}
	return outcome, nil
}

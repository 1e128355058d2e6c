package abandon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storebridge/internal/domain"
	"storebridge/internal/metrics"
	"storebridge/internal/models"

	"github.com/rs/zerolog"
)

// ErrNotificationFailed marks a delivery failure on the notification
// path. It is reported, never fatal: the inbound webhook is always
// acknowledged regardless.
var ErrNotificationFailed = errors.New("notification failed")

// Detector classifies checkout events as abandoned and drives the
// notification path. The decision itself is a pure function of the
// event, the clock and the threshold; the detector holds no dedup
// state, so a redelivered event is re-evaluated and may re-notify.
type Detector struct {
	creds            domain.CredentialStore
	sink             domain.SinkClient
	thresholdMinutes int
	logger           *zerolog.Logger
}

func NewDetector(creds domain.CredentialStore, sink domain.SinkClient, thresholdMinutes int, logger *zerolog.Logger) *Detector {
	if thresholdMinutes <= 0 {
		thresholdMinutes = models.DefaultThresholdMinutes
	}
	return &Detector{
		creds:            creds,
		sink:             sink,
		thresholdMinutes: thresholdMinutes,
		logger:           logger,
	}
}

// Evaluate decides whether the checkout qualifies as abandoned at the
// given instant. A completed checkout is never abandoned. Elapsed time
// is floored to whole minutes; negative values (clock skew, malformed
// payload) count as zero rather than erroring. Exactly reaching the
// threshold counts as abandoned.
func Evaluate(event models.CheckoutEvent, now time.Time, thresholdMinutes int) models.AbandonmentDecision {
	elapsed := int(now.Sub(event.UpdatedAt).Minutes())
	if elapsed < 0 {
		elapsed = 0
	}

	decision := models.AbandonmentDecision{ElapsedMinutes: elapsed}
	if event.CompletedAt != nil {
		return decision
	}
	decision.Abandoned = elapsed >= thresholdMinutes
	return decision
}

// Process evaluates one event and, when abandoned, sends the
// notification through the sink. A missing credential skips the send
// but keeps the decision; the skip is observable to the caller and is
// distinct from a delivery failure.
func (d *Detector) Process(ctx context.Context, tenant models.Tenant, event models.CheckoutEvent, now time.Time) domain.DetectorResult {
	result := domain.DetectorResult{
		Decision: Evaluate(event, now, d.thresholdMinutes),
	}
	metrics.IncDecision(result.Decision.Abandoned)

	if !result.Decision.Abandoned {
		return result
	}

	credential, ok, err := d.creds.Get(ctx, tenant.ID)
	if err != nil {
		result.NotifyErr = fmt.Errorf("%w: credential lookup: %v", ErrNotificationFailed, err)
		metrics.IncNotificationFailure()
		return result
	}
	if !ok {
		result.SkippedNoCredential = true
		d.logger.Warn().
			Str("tenant_id", tenant.ID).
			Str("cart_token", event.CartToken).
			Msg("abandoned checkout detected but tenant has no credential, notification skipped")
		return result
	}

	payload := models.AbandonmentNotification{
		TenantID:       tenant.ID,
		CartToken:      event.CartToken,
		CustomerID:     event.CustomerID,
		Email:          event.Email,
		CheckoutURL:    event.CheckoutURL,
		TotalPrice:     event.TotalPrice,
		LineItems:      event.LineItems,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
		ElapsedMinutes: result.Decision.ElapsedMinutes,
	}

	outcome := d.sink.SendAbandonment(ctx, credential, payload)
	if !outcome.OK() {
		result.NotifyErr = fmt.Errorf("%w: sink answered %s (status %d)", ErrNotificationFailed, outcome.Status, outcome.HTTPStatus)
		metrics.IncNotificationFailure()
		d.logger.Warn().
			Str("tenant_id", tenant.ID).
			Str("cart_token", event.CartToken).
			Str("outcome", outcome.Status).
			Int("http_status", outcome.HTTPStatus).
			Msg("abandonment notification failed")
		return result
	}

	result.Notified = true
	d.logger.Info().
		Str("tenant_id", tenant.ID).
		Str("cart_token", event.CartToken).
		Int("elapsed_minutes", result.Decision.ElapsedMinutes).
		Msg("abandonment notification sent")
	return result
}

package models

import "time"

// Sync run terminal statuses.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// SyncRun is one execution of the sync pipeline for one tenant.
// It is created when the run starts, updated after every batch and
// finalized exactly once; all outcomes are encoded here, the
// orchestrator never raises past its boundary.
type SyncRun struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	Batches        int        `json:"batches"`
	TotalForwarded int        `json:"total_forwarded"`
	Status         string     `json:"status"`
	FailedBatch    int        `json:"failed_batch,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Failed reports whether the run ended without forwarding everything.
func (r *SyncRun) Failed() bool {
	return r.Status != RunStatusSuccess
}

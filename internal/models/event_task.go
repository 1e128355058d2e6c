package models

import "time"

// EventTask is a queued checkout event awaiting evaluation.
// Payload holds the raw CheckoutEvent JSON exactly as received.
type EventTask struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	TenantID    string     `json:"tenant_id"`
	CartToken   string     `json:"cart_token"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

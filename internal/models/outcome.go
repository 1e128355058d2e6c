package models

import "time"

// Batch dispatch outcome statuses.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeNetworkError = "network_error"
)

// BatchOutcome classifies one outbound sink call. Rejected means the
// sink answered with a non-2xx status; network_error means the call
// never produced a response.
type BatchOutcome struct {
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// OK reports whether the sink accepted the payload.
func (o BatchOutcome) OK() bool {
	return o.Status == OutcomeOK
}

// CustomerBatchPayload is the wire shape forwarded to the sink for one batch.
type CustomerBatchPayload struct {
	TenantID  string           `json:"tenant_id"`
	Sequence  int              `json:"sequence"`
	Customers []CustomerRecord `json:"customers"`
}

// AbandonmentNotification is the wire shape sent when a checkout is
// classified abandoned.
type AbandonmentNotification struct {
	TenantID       string     `json:"tenant_id"`
	CartToken      string     `json:"cart_token"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Email          string     `json:"email"`
	CheckoutURL    string     `json:"checkout_url,omitempty"`
	TotalPrice     string     `json:"total_price"`
	LineItems      []LineItem `json:"line_items"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ElapsedMinutes int        `json:"elapsed_minutes"`
}

package models

import (
	"errors"
	"time"
)

// LineItem is one cart line inside a checkout.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// CheckoutEvent is one abandonment-candidate observation delivered by
// the platform's checkout-update webhook. CompletedAt being set means
// the checkout converted and is no longer abandonable.
type CheckoutEvent struct {
	CartToken   string     `json:"cart_token"`
	CustomerID  string     `json:"customer_id,omitempty"`
	Email       string     `json:"email"`
	TotalPrice  string     `json:"total_price"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	LineItems   []LineItem `json:"line_items"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

var (
	ErrMissingCartToken = errors.New("checkout event: cart_token is required")
	ErrMissingUpdatedAt = errors.New("checkout event: updated_at is required")
)

// Validate enforces the required fields at the boundary, before the
// event enters the pipeline.
func (e *CheckoutEvent) Validate() error {
	if e.CartToken == "" {
		return ErrMissingCartToken
	}
	if e.UpdatedAt.IsZero() {
		return ErrMissingUpdatedAt
	}
	return nil
}

// AbandonmentDecision is derived per event, never persisted.
type AbandonmentDecision struct {
	Abandoned      bool `json:"abandoned"`
	ElapsedMinutes int  `json:"elapsed_minutes"`
}

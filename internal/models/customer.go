package models

import "time"

// CustomerAddress is the default address attached to a customer record.
type CustomerAddress struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
}

// CustomerRecord is one upstream customer entity as fetched from the
// paged source. It is an immutable snapshot: the pipeline relays it,
// never mutates it.
type CustomerRecord struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	FirstName             string          `json:"first_name,omitempty"`
	LastName              string          `json:"last_name,omitempty"`
	Phone                 string          `json:"phone,omitempty"`
	Address               CustomerAddress `json:"address,omitempty"`
	Tags                  []string        `json:"tags,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	MonthsSinceFirstOrder int             `json:"months_since_first_order,omitempty"`
}

// PageCursor is an opaque continuation token for the paged customer
// source. A cursor value is only valid for the query that produced it;
// reusing it across a different page size or filter is undefined.
type PageCursor struct {
	Value   string `json:"value"`
	HasMore bool   `json:"has_more"`
}

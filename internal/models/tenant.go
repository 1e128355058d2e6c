package models

import "time"

// Tenant identifies one store/account on the commerce platform.
// A tenant owns at most one outbound credential at any time; the
// credential itself lives in the credential store, never here.
type Tenant struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

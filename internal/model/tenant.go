package model

import "github.com/google/uuid"

// TenantContext carries everything the pipeline needs about one organization.
// It is passed explicitly; no component reads tenant settings from globals.
type TenantContext struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Currency string    `json:"currency"`
	Locale   string    `json:"locale"`
}

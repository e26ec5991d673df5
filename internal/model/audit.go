package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ProcessingStatus string

const (
	ProcessingPending            ProcessingStatus = "pending"
	ProcessingSuccess            ProcessingStatus = "success"
	ProcessingSuccessUpdated     ProcessingStatus = "success_updated"
	ProcessingValidationError    ProcessingStatus = "validation_error"
	ProcessingWarningMissingData ProcessingStatus = "warning_missing_data"
	ProcessingError              ProcessingStatus = "error"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// WebhookAuditLog records one inbound delivery. Only the outcome fields
// change after creation.
type WebhookAuditLog struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Source           string
	Headers          map[string]string
	Body             json.RawMessage
	ReceivedAt       time.Time
	ProcessingStatus ProcessingStatus
	TransactionID    *string
	ErrorMessage     *string
	ValidationErrors []FieldError
	ProcessedAt      *time.Time
}

type AuditOutcome struct {
	Status           ProcessingStatus
	TransactionID    string
	ErrorMessage     string
	ValidationErrors []FieldError
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleEvent is published to downstream consumers after a reconciliation.
type SaleEvent struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	SaleID         uuid.UUID       `json:"saleId"`
	TransactionID  string          `json:"transactionId"`
	Gateway        string          `json:"gateway"`
	Action         string          `json:"action"`
	PreviousStatus Status          `json:"previousStatus,omitempty"`
	Status         Status          `json:"status"`
	Value          decimal.Decimal `json:"value"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// OutboxEvent is a SaleEvent waiting in the outbox for publication.
type OutboxEvent struct {
	ID              uuid.UUID
	Event           SaleEvent
	CreatedAt       time.Time
	ScheduledAt     *time.Time
	PublishedAt     *time.Time
	PublishAttempts int
	Error           *string
}

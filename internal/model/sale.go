package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRefused    Status = "refused"
	StatusRefunded   Status = "refunded"
	StatusChargeback Status = "chargeback"
	StatusUnknown    Status = "unknown"
)

// UnknownTransactionID is stored when a tolerant gateway omits the transaction id.
const UnknownTransactionID = "unknown_id"

// IsCanonical reports whether s belongs to the canonical vocabulary.
// Statuses outside it are gateway tokens that no table maps yet.
func (s Status) IsCanonical() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRefused, StatusRefunded, StatusChargeback, StatusUnknown:
		return true
	}
	return false
}

type SaleKey struct {
	TenantID      uuid.UUID
	TransactionID string
	Gateway       string
}

type Customer struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Document *string `json:"document,omitempty"`
}

// Tracking is the flat attribution map (utm_* fields, click ids, gateway).
type Tracking map[string]string

type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"eventType"`
	Status    Status    `json:"status"`
}

type Sale struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	TransactionID     string
	Gateway           string
	Status            Status
	RawStatus         string
	Customer          Customer
	ProductName       *string
	Value             decimal.Decimal
	NetValue          decimal.NullDecimal
	Tracking          Tracking
	Payload           json.RawMessage
	ProcessingHistory []HistoryEntry
	CreatedAt         time.Time
	ReceivedAt        time.Time
	UpdatedAt         time.Time
}

func (s *Sale) Key() SaleKey {
	return SaleKey{TenantID: s.TenantID, TransactionID: s.TransactionID, Gateway: s.Gateway}
}

// HasReached reports whether any recorded event put the sale in status.
func (s *Sale) HasReached(status Status) bool {
	for _, h := range s.ProcessingHistory {
		if h.Status == status {
			return true
		}
	}
	return false
}

// SaleInput is the canonical shape produced by a gateway normalizer.
type SaleInput struct {
	TransactionID string
	Gateway       string
	EventType     string
	Status        Status
	RawStatus     string
	Customer      Customer
	ProductName   *string
	Value         decimal.Decimal
	NetValue      decimal.NullDecimal
	Tracking      Tracking
	Payload       json.RawMessage
}

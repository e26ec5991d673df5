package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSaleApproved EventType = "sale_approved"
	EventSalePending  EventType = "sale_pending"
	EventSaleRefunded EventType = "sale_refunded"
)

// EventTypeFor maps a sale status to the notification it triggers, if any.
func EventTypeFor(status Status) (EventType, bool) {
	switch status {
	case StatusApproved:
		return EventSaleApproved, true
	case StatusPending:
		return EventSalePending, true
	case StatusRefunded:
		return EventSaleRefunded, true
	}
	return "", false
}

type NotificationTemplate struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Enabled bool   `json:"enabled"`
}

type InAppNotification struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Type      EventType
	Title     string
	Message   string
	Read      bool
	Metadata  map[string]string
	CreatedAt time.Time
}

// ProfileTokens lists the device tokens registered on one profile.
type ProfileTokens struct {
	ProfileID uuid.UUID
	Tokens    []string
}

type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushResult is the delivery outcome for one device token. ErrorCode is empty
// on success.
type PushResult struct {
	Token     string
	ErrorCode string
}

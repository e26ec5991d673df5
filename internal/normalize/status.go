package normalize

import (
	"strings"

	"payment-webhook-service/internal/model"
)

// StatusTable maps lower-cased gateway status tokens onto canonical statuses.
type StatusTable map[string]model.Status

var baseStatuses = StatusTable{
	"paid":            model.StatusApproved,
	"confirmed":       model.StatusApproved,
	"authorized":      model.StatusApproved,
	"approved":        model.StatusApproved,
	"waiting_payment": model.StatusPending,
	"processing":      model.StatusPending,
	"pending":         model.StatusPending,
	"refused":         model.StatusRefused,
	"declined":        model.StatusRefused,
	"antifraud":       model.StatusRefused,
	"refunded":        model.StatusRefunded,
	"chargeback":      model.StatusChargeback,
	"dispute":         model.StatusChargeback,
	"unknown":         model.StatusUnknown,
}

// NewStatusTable returns the shared vocabulary extended with gateway
// specific tokens. Extras win over the base entries.
func NewStatusTable(extra StatusTable) StatusTable {
	t := make(StatusTable, len(baseStatuses)+len(extra))
	for k, v := range baseStatuses {
		t[k] = v
	}
	for k, v := range extra {
		t[strings.ToLower(k)] = v
	}
	return t
}

// Map returns the canonical status for raw. Tokens missing from the table
// come back unchanged so vocabulary drift stays visible downstream.
func (t StatusTable) Map(raw string) model.Status {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return model.StatusUnknown
	}
	if s, ok := t[token]; ok {
		return s
	}
	return model.Status(raw)
}

package gateway

import (
	"payment-webhook-service/internal/model"
)

// Event is the validated, gateway-specific form of an inbound body.
// Each adapter defines its own concrete variant.
type Event interface {
	Gateway() string
}

// Adapter validates and normalizes the payloads of one gateway.
type Adapter interface {
	Name() string
	// Strict adapters reject bodies with missing identifying fields, and the
	// pipeline rejects any warning they return. Tolerant ones substitute
	// placeholders and report the gaps as warnings.
	Strict() bool
	// Validate parses body. A structural failure comes back as a
	// *ValidationError; warnings are only returned by tolerant adapters.
	Validate(body []byte) (Event, []model.FieldError, error)
	// Normalize never fails; fields it cannot map degrade to nil or
	// pass through unchanged.
	Normalize(ev Event) model.SaleInput
}

// unmatchedInput is what Normalize returns when handed another adapter's event.
func unmatchedInput(gateway string) model.SaleInput {
	return model.SaleInput{
		TransactionID: model.UnknownTransactionID,
		Gateway:       gateway,
		Status:        model.StatusUnknown,
		RawStatus:     string(model.StatusUnknown),
		Tracking:      model.Tracking{"gateway": gateway},
	}
}

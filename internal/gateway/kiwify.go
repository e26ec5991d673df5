package gateway

import (
	"encoding/json"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/normalize"
)

const Kiwify = "kiwify"

var kiwifyStatuses = normalize.NewStatusTable(normalize.StatusTable{
	"chargedback": model.StatusChargeback,
})

// KiwifyEvent is an order webhook. Commission amounts are cents, sometimes
// sent as strings, and are only parsed during normalization so a malformed
// amount never rejects the delivery.
type KiwifyEvent struct {
	OrderID     string `json:"order_id" validate:"required"`
	OrderRef    string `json:"order_ref"`
	OrderStatus string `json:"order_status" validate:"required"`
	EventType   string `json:"webhook_event_type"`
	Product     struct {
		ProductName string `json:"product_name"`
	} `json:"Product"`
	Customer struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Mobile   string `json:"mobile"`
		CPF      string `json:"CPF"`
	} `json:"Customer"`
	Commissions struct {
		ChargeAmount json.RawMessage `json:"charge_amount"`
		MyCommission json.RawMessage `json:"my_commission"`
	} `json:"Commissions"`
	TrackingParameters map[string]any `json:"TrackingParameters"`

	raw json.RawMessage
}

func (e *KiwifyEvent) Gateway() string { return Kiwify }

type kiwifyAdapter struct{}

func NewKiwify() Adapter { return kiwifyAdapter{} }

func (kiwifyAdapter) Name() string { return Kiwify }

// Strict is false: kiwify deliveries missing their identifiers are still
// stored under placeholder values so the audit trail keeps them.
func (kiwifyAdapter) Strict() bool { return false }

func (kiwifyAdapter) Validate(body []byte) (Event, []model.FieldError, error) {
	var ev KiwifyEvent
	if err := decode(Kiwify, body, &ev); err != nil {
		return nil, nil, err
	}
	warnings := structErrors(&ev)
	if ev.OrderID == "" {
		ev.OrderID = model.UnknownTransactionID
	}
	if ev.OrderStatus == "" {
		ev.OrderStatus = string(model.StatusUnknown)
	}
	ev.raw = append(json.RawMessage(nil), body...)
	return &ev, warnings, nil
}

func (kiwifyAdapter) Normalize(ev Event) model.SaleInput {
	e, ok := ev.(*KiwifyEvent)
	if !ok {
		return unmatchedInput(Kiwify)
	}

	eventType := e.EventType
	if eventType == "" {
		eventType = "order_" + e.OrderStatus
	}

	in := model.SaleInput{
		TransactionID: e.OrderID,
		Gateway:       Kiwify,
		EventType:     eventType,
		Status:        kiwifyStatuses.Map(e.OrderStatus),
		RawStatus:     e.OrderStatus,
		ProductName:   normalize.Optional(e.Product.ProductName),
		Customer: model.Customer{
			Name:     normalize.Optional(e.Customer.FullName),
			Email:    normalize.Optional(e.Customer.Email),
			Phone:    normalize.Optional(e.Customer.Mobile),
			Document: normalize.Optional(e.Customer.CPF),
		},
		Tracking: normalize.Tracking(Kiwify, stringMap(e.TrackingParameters), "src", "sck", "s1", "s2", "s3"),
		Payload:  e.raw,
	}
	if v := normalize.OptionalMinorRaw(e.Commissions.ChargeAmount); v.Valid {
		in.Value = v.Decimal
	}
	in.NetValue = normalize.OptionalMinorRaw(e.Commissions.MyCommission)
	return in
}

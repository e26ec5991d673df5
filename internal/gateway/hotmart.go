package gateway

import (
	"encoding/json"
	"strings"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/normalize"
)

const Hotmart = "hotmart"

var hotmartStatuses = normalize.NewStatusTable(normalize.StatusTable{
	"complete":       model.StatusApproved,
	"billet_printed": model.StatusPending,
	"delayed":        model.StatusPending,
	"canceled":       model.StatusRefused,
	"expired":        model.StatusRefused,
	"protested":      model.StatusChargeback,
})

// HotmartEvent is a purchase webhook (v2). Prices are decimal major units.
type HotmartEvent struct {
	ID    string `json:"id"`
	Event string `json:"event" validate:"required"`
	Data  struct {
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
		Buyer struct {
			Name          string `json:"name"`
			Email         string `json:"email"`
			CheckoutPhone string `json:"checkout_phone"`
			Document      string `json:"document"`
		} `json:"buyer"`
		Purchase struct {
			Transaction string `json:"transaction" validate:"required"`
			Status      string `json:"status" validate:"required"`
			Price       struct {
				Value    *json.Number `json:"value" validate:"required"`
				Currency string       `json:"currency_value"`
			} `json:"price"`
			Origin map[string]any `json:"origin"`
		} `json:"purchase"`
		Commissions []struct {
			Value  *json.Number `json:"value"`
			Source string       `json:"source"`
		} `json:"commissions"`
	} `json:"data"`

	raw json.RawMessage
}

func (e *HotmartEvent) Gateway() string { return Hotmart }

type hotmartAdapter struct{}

func NewHotmart() Adapter { return hotmartAdapter{} }

func (hotmartAdapter) Name() string { return Hotmart }

func (hotmartAdapter) Strict() bool { return true }

func (hotmartAdapter) Validate(body []byte) (Event, []model.FieldError, error) {
	var ev HotmartEvent
	if err := decode(Hotmart, body, &ev); err != nil {
		return nil, nil, err
	}
	if errs := structErrors(&ev); len(errs) > 0 {
		return nil, nil, &ValidationError{Gateway: Hotmart, Errors: errs}
	}
	ev.raw = append(json.RawMessage(nil), body...)
	return &ev, nil, nil
}

func (hotmartAdapter) Normalize(ev Event) model.SaleInput {
	e, ok := ev.(*HotmartEvent)
	if !ok {
		return unmatchedInput(Hotmart)
	}
	p := e.Data.Purchase

	in := model.SaleInput{
		TransactionID: p.Transaction,
		Gateway:       Hotmart,
		EventType:     e.Event,
		Status:        hotmartStatuses.Map(p.Status),
		RawStatus:     p.Status,
		ProductName:   normalize.Optional(e.Data.Product.Name),
		Customer: model.Customer{
			Name:     normalize.Optional(e.Data.Buyer.Name),
			Email:    normalize.Optional(e.Data.Buyer.Email),
			Phone:    normalize.Optional(e.Data.Buyer.CheckoutPhone),
			Document: normalize.Optional(e.Data.Buyer.Document),
		},
		Tracking: normalize.Tracking(Hotmart, stringMap(p.Origin), "src", "sck", "xcod"),
		Payload:  e.raw,
	}
	if p.Price.Value != nil {
		in.Value = normalize.FromMajorUnits(*p.Price.Value)
	}
	for _, c := range e.Data.Commissions {
		if strings.EqualFold(c.Source, "PRODUCER") {
			in.NetValue = normalize.OptionalMajorUnits(c.Value)
			break
		}
	}
	return in
}

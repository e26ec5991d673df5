package gateway

import (
	"encoding/json"
	"fmt"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/normalize"
)

const Pagarme = "pagarme"

var pagarmeStatuses = normalize.NewStatusTable(normalize.StatusTable{
	"failed":      model.StatusRefused,
	"canceled":    model.StatusRefused,
	"chargedback": model.StatusChargeback,
	"overpaid":    model.StatusApproved,
	"underpaid":   model.StatusPending,
})

type pagarmePhone struct {
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code"`
	Number      string `json:"number"`
}

// PagarmeEvent is an order webhook. Amounts are integer cents.
type PagarmeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type" validate:"required"`
	Data struct {
		ID       string `json:"id" validate:"required"`
		Code     string `json:"code"`
		Status   string `json:"status" validate:"required"`
		Amount   *int64 `json:"amount" validate:"required,gte=0"`
		Customer *struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Document string `json:"document"`
			Phones   struct {
				Mobile *pagarmePhone `json:"mobile_phone"`
				Home   *pagarmePhone `json:"home_phone"`
			} `json:"phones"`
		} `json:"customer"`
		Items []struct {
			Description string `json:"description"`
		} `json:"items"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`

	raw json.RawMessage
}

func (e *PagarmeEvent) Gateway() string { return Pagarme }

type pagarmeAdapter struct{}

func NewPagarme() Adapter { return pagarmeAdapter{} }

func (pagarmeAdapter) Name() string { return Pagarme }

func (pagarmeAdapter) Strict() bool { return true }

func (pagarmeAdapter) Validate(body []byte) (Event, []model.FieldError, error) {
	var ev PagarmeEvent
	if err := decode(Pagarme, body, &ev); err != nil {
		return nil, nil, err
	}
	if errs := structErrors(&ev); len(errs) > 0 {
		return nil, nil, &ValidationError{Gateway: Pagarme, Errors: errs}
	}
	ev.raw = append(json.RawMessage(nil), body...)
	return &ev, nil, nil
}

func (pagarmeAdapter) Normalize(ev Event) model.SaleInput {
	e, ok := ev.(*PagarmeEvent)
	if !ok {
		return unmatchedInput(Pagarme)
	}

	in := model.SaleInput{
		TransactionID: e.Data.ID,
		Gateway:       Pagarme,
		EventType:     e.Type,
		Status:        pagarmeStatuses.Map(e.Data.Status),
		RawStatus:     e.Data.Status,
		Tracking:      normalize.Tracking(Pagarme, stringMap(e.Data.Metadata), "src", "sck", "fbclid", "gclid"),
		Payload:       e.raw,
	}
	if e.Data.Amount != nil {
		in.Value = normalize.FromMinorUnits(*e.Data.Amount)
	}
	if c := e.Data.Customer; c != nil {
		in.Customer = model.Customer{
			Name:     normalize.Optional(c.Name),
			Email:    normalize.Optional(c.Email),
			Document: normalize.Optional(c.Document),
			Phone:    pagarmePhoneNumber(c.Phones.Mobile, c.Phones.Home),
		}
	}
	if len(e.Data.Items) > 0 {
		in.ProductName = normalize.Optional(e.Data.Items[0].Description)
	}
	return in
}

func pagarmePhoneNumber(phones ...*pagarmePhone) *string {
	for _, p := range phones {
		if p == nil || p.Number == "" {
			continue
		}
		return normalize.Optional(fmt.Sprintf("+%s%s%s", p.CountryCode, p.AreaCode, p.Number))
	}
	return nil
}

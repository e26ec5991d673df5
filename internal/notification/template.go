package notification

import (
	"strings"

	"payment-webhook-service/internal/model"
)

var defaultTemplates = map[model.EventType]model.NotificationTemplate{
	model.EventSaleApproved: {
		Title:   "Venda aprovada",
		Message: "{cliente} comprou {produto} por {valor} via {gateway}",
		Enabled: true,
	},
	model.EventSalePending: {
		Title:   "Venda pendente",
		Message: "{cliente} gerou um pedido de {valor} ({produto}) aguardando pagamento.",
		Enabled: true,
	},
	model.EventSaleRefunded: {
		Title:   "Venda reembolsada",
		Message: "O pedido de {cliente} no valor de {valor} foi reembolsado.",
		Enabled: true,
	},
}

// DefaultTemplate returns the built-in template for eventType.
func DefaultTemplate(eventType model.EventType) (model.NotificationTemplate, bool) {
	tpl, ok := defaultTemplates[eventType]
	return tpl, ok
}

// Placeholder values substituted into templates.
type Values struct {
	Valor   string
	Cliente string
	Produto string
	Gateway string
}

// Interpolate replaces the known placeholders literally. Anything else in
// braces stays as written.
func Interpolate(text string, v Values) string {
	return strings.NewReplacer(
		"{valor}", v.Valor,
		"{cliente}", v.Cliente,
		"{produto}", v.Produto,
		"{gateway}", v.Gateway,
	).Replace(text)
}

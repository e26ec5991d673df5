package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/push"
)

const (
	fallbackCustomer = "Cliente"
	fallbackProduct  = "produto"
)

var (
	dispatchSentCounter     = metrics.GetOrCreateCounter(`notification_dispatch_total{result="sent"}`)
	dispatchDisabledCounter = metrics.GetOrCreateCounter(`notification_dispatch_total{result="disabled"}`)
	dispatchNoTokensCounter = metrics.GetOrCreateCounter(`notification_dispatch_total{result="no_tokens"}`)
	dispatchErrorCounter    = metrics.GetOrCreateCounter(`notification_dispatch_total{result="error"}`)
	tokensPrunedCounter     = metrics.GetOrCreateCounter(`push_tokens_pruned_total`)
)

type TemplateStore interface {
	// LoadTemplate returns the tenant override or nil when none exists.
	LoadTemplate(ctx context.Context, tenantID uuid.UUID, eventType model.EventType) (*model.NotificationTemplate, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.InAppNotification) error
}

type ProfileStore interface {
	ListDeviceTokens(ctx context.Context, tenantID uuid.UUID) ([]model.ProfileTokens, error)
	// PruneTokens removes every listed token from every profile of the tenant.
	PruneTokens(ctx context.Context, tenantID uuid.UUID, tokens []string) error
}

type PushSender interface {
	SendPush(ctx context.Context, tokens []string, msg model.PushMessage) ([]model.PushResult, error)
}

// Data describes the sale being announced.
type Data struct {
	SaleID        uuid.UUID
	TransactionID string
	CustomerName  *string
	ProductName   *string
	Value         decimal.Decimal
	Gateway       string
}

type Report struct {
	Disabled       bool
	NotificationID uuid.UUID
	Tokens         int
	Delivered      int
	Failed         int
	Pruned         []string
}

type Dispatcher struct {
	templates     TemplateStore
	notifications NotificationStore
	profiles      ProfileStore
	sender        PushSender
	logger        *slog.Logger
}

func NewDispatcher(templates TemplateStore, notifications NotificationStore, profiles ProfileStore, sender PushSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		templates:     templates,
		notifications: notifications,
		profiles:      profiles,
		sender:        sender,
		logger:        logger,
	}
}

// Dispatch writes one in-app notification and pushes it to every device of
// the tenant, then prunes tokens the provider reported as permanently dead.
// A disabled template produces no side effects.
func (d *Dispatcher) Dispatch(ctx context.Context, tenant model.TenantContext, eventType model.EventType, data Data) (Report, error) {
	report, err := d.dispatch(ctx, tenant, eventType, data)
	if err != nil {
		dispatchErrorCounter.Inc()
	}
	return report, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tenant model.TenantContext, eventType model.EventType, data Data) (Report, error) {
	var report Report

	tpl, err := d.resolveTemplate(ctx, tenant.ID, eventType)
	if err != nil {
		return report, err
	}
	if !tpl.Enabled {
		d.logger.InfoContext(ctx, "Notification template disabled", "type", eventType)
		dispatchDisabledCounter.Inc()
		report.Disabled = true
		return report, nil
	}

	values := Values{
		Valor:   FormatMoney(data.Value, tenant.Currency, tenant.Locale),
		Cliente: orDefault(data.CustomerName, fallbackCustomer),
		Produto: orDefault(data.ProductName, fallbackProduct),
		Gateway: data.Gateway,
	}
	title := Interpolate(tpl.Title, values)
	body := Interpolate(tpl.Message, values)

	n := &model.InAppNotification{
		ID:       uuid.New(),
		TenantID: tenant.ID,
		Type:     eventType,
		Title:    title,
		Message:  body,
		Metadata: map[string]string{
			"saleId":        data.SaleID.String(),
			"transactionId": data.TransactionID,
			"gateway":       data.Gateway,
			"value":         data.Value.StringFixed(2),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		return report, errors.Wrap(err, "create in-app notification")
	}
	report.NotificationID = n.ID

	profiles, err := d.profiles.ListDeviceTokens(ctx, tenant.ID)
	if err != nil {
		return report, errors.Wrap(err, "list device tokens")
	}
	tokens := distinctTokens(profiles)
	report.Tokens = len(tokens)
	if len(tokens) == 0 {
		d.logger.InfoContext(ctx, "No device tokens registered, skipping push")
		dispatchNoTokensCounter.Inc()
		return report, nil
	}

	results, err := d.sender.SendPush(ctx, tokens, model.PushMessage{Title: title, Body: body, Data: n.Metadata})
	if err != nil {
		report.Failed = len(tokens)
		return report, errors.Wrap(err, "send push")
	}

	var dead []string
	for _, r := range results {
		switch {
		case r.ErrorCode == "":
			report.Delivered++
		case push.IsPermanent(r.ErrorCode):
			report.Failed++
			dead = append(dead, r.Token)
		default:
			report.Failed++
		}
	}

	if len(dead) > 0 {
		if err := d.profiles.PruneTokens(ctx, tenant.ID, dead); err != nil {
			return report, errors.Wrap(err, "prune device tokens")
		}
		report.Pruned = dead
		tokensPrunedCounter.Add(len(dead))
	}

	dispatchSentCounter.Inc()
	d.logger.InfoContext(ctx, "Notification dispatched",
		"type", eventType,
		"tokens", report.Tokens,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"pruned", len(report.Pruned))
	return report, nil
}

func (d *Dispatcher) resolveTemplate(ctx context.Context, tenantID uuid.UUID, eventType model.EventType) (model.NotificationTemplate, error) {
	tpl, err := d.templates.LoadTemplate(ctx, tenantID, eventType)
	if err != nil {
		return model.NotificationTemplate{}, errors.Wrap(err, "load notification template")
	}
	if tpl != nil {
		return *tpl, nil
	}
	def, ok := DefaultTemplate(eventType)
	if !ok {
		return model.NotificationTemplate{}, errors.Errorf("no template for %s", eventType)
	}
	return def, nil
}

func distinctTokens(profiles []model.ProfileTokens) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, p := range profiles {
		for _, t := range p.Tokens {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

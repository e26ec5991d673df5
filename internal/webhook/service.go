package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"payment-webhook-service/internal/gateway"
	"payment-webhook-service/internal/logcontext"
	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/notification"
	"payment-webhook-service/internal/reconcile"
	"payment-webhook-service/internal/tenant"
)

const defaultNotifyTimeout = 15 * time.Second

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *model.WebhookAuditLog) error
	FinishAuditLog(ctx context.Context, id uuid.UUID, outcome model.AuditOutcome) error
}

type TenantResolver interface {
	Resolve(ctx context.Context, creds tenant.Credentials) (*model.TenantContext, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, tenant model.TenantContext, in model.SaleInput) (*reconcile.Outcome, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, tenant model.TenantContext, eventType model.EventType, data notification.Data) (notification.Report, error)
}

// Request is one inbound delivery, independent of how it arrived.
type Request struct {
	Gateway     string
	Credentials tenant.Credentials
	Headers     map[string]string
	Body        []byte
}

// Response is the status code and JSON body to send back.
type Response struct {
	Status int
	Body   any
}

type SuccessBody struct {
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	Action        string `json:"action"`
}

type ValidationBody struct {
	Message string             `json:"message"`
	Errors  []model.FieldError `json:"errors"`
}

type FailureBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type ErrorBody struct {
	Error string `json:"error"`
}

type Service struct {
	registry      *gateway.Registry
	tenants       TenantResolver
	audit         AuditStore
	engine        Reconciler
	notifier      Notifier
	notifyTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(registry *gateway.Registry, tenants TenantResolver, audit AuditStore, engine Reconciler, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		registry:      registry,
		tenants:       tenants,
		audit:         audit,
		engine:        engine,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// WithNotifyTimeout bounds the time spent dispatching a notification.
func (s *Service) WithNotifyTimeout(d time.Duration) *Service {
	if d > 0 {
		s.notifyTimeout = d
	}
	return s
}

// Handle runs one delivery through tenant resolution, auditing, validation,
// reconciliation and notification. It never returns an error; every
// failure is expressed in the response.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	ctx = logcontext.AppendCtx(ctx, slog.String("gateway", req.Gateway))

	adapter, err := s.registry.Get(req.Gateway)
	if err != nil {
		s.logger.WarnContext(ctx, "Webhook for unknown gateway")
		countRequest("unknown", "unknown_gateway")
		return Response{Status: http.StatusBadRequest, Body: ErrorBody{Error: err.Error()}}
	}
	name := adapter.Name()

	t, err := s.tenants.Resolve(ctx, req.Credentials)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) || errors.Is(err, tenant.ErrMissingCredentials) {
			s.logger.WarnContext(ctx, "Webhook tenant not resolved", "error", err)
			countRequest(name, "unauthorized")
			return Response{Status: http.StatusUnauthorized, Body: ErrorBody{Error: "invalid organization credentials"}}
		}
		s.logger.ErrorContext(ctx, "Error resolving tenant", "error", err)
		countRequest(name, "error")
		return Response{Status: http.StatusInternalServerError, Body: FailureBody{Message: "Failed to process webhook", Error: err.Error()}}
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("tenantId", t.ID.String()))

	entry := &model.WebhookAuditLog{
		ID:               uuid.New(),
		TenantID:         t.ID,
		Source:           name,
		Headers:          req.Headers,
		Body:             req.Body,
		ReceivedAt:       s.now().UTC(),
		ProcessingStatus: model.ProcessingPending,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error creating audit log", "error", err)
		countRequest(name, "error")
		return Response{Status: http.StatusInternalServerError, Body: FailureBody{Message: "Failed to process webhook", Error: err.Error()}}
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("auditId", entry.ID.String()))

	event, warnings, err := adapter.Validate(req.Body)
	if err != nil {
		var verr *gateway.ValidationError
		fieldErrors := []model.FieldError{{Field: "body", Rule: "invalid", Message: err.Error()}}
		if errors.As(err, &verr) {
			fieldErrors = verr.Errors
		}
		s.logger.InfoContext(ctx, "Webhook payload rejected", "errors", len(fieldErrors))
		s.finishAudit(ctx, entry.ID, model.AuditOutcome{
			Status:           model.ProcessingValidationError,
			ErrorMessage:     err.Error(),
			ValidationErrors: fieldErrors,
		})
		countRequest(name, "validation_error")
		return Response{Status: http.StatusBadRequest, Body: ValidationBody{Message: "Invalid payload", Errors: fieldErrors}}
	}

	if adapter.Strict() && len(warnings) > 0 {
		s.logger.InfoContext(ctx, "Webhook payload incomplete for strict gateway", "errors", len(warnings))
		s.finishAudit(ctx, entry.ID, model.AuditOutcome{
			Status:           model.ProcessingValidationError,
			ErrorMessage:     fmt.Sprintf("invalid %s payload: %d field(s) missing", name, len(warnings)),
			ValidationErrors: warnings,
		})
		countRequest(name, "validation_error")
		return Response{Status: http.StatusBadRequest, Body: ValidationBody{Message: "Invalid payload", Errors: warnings}}
	}

	in := adapter.Normalize(event)
	ctx = logcontext.AppendCtx(ctx, slog.String("transactionId", in.TransactionID))
	if !in.Status.IsCanonical() {
		s.logger.WarnContext(ctx, "Gateway status not mapped, storing raw token", "rawStatus", in.RawStatus)
		countUnmappedStatus(name)
	}

	out, err := s.engine.Reconcile(ctx, *t, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reconciling sale", "error", err)
		s.finishAudit(ctx, entry.ID, model.AuditOutcome{
			Status:        model.ProcessingError,
			TransactionID: in.TransactionID,
			ErrorMessage:  err.Error(),
		})
		countRequest(name, "error")
		return Response{Status: http.StatusInternalServerError, Body: FailureBody{Message: "Failed to process webhook", Error: err.Error()}}
	}

	outcome := model.AuditOutcome{Status: model.ProcessingSuccess, TransactionID: in.TransactionID}
	switch {
	case len(warnings) > 0:
		outcome.Status = model.ProcessingWarningMissingData
		outcome.ValidationErrors = warnings
		outcome.ErrorMessage = fmt.Sprintf("%d field(s) missing, placeholders stored", len(warnings))
	case out.Action == reconcile.ActionUpdated:
		outcome.Status = model.ProcessingSuccessUpdated
	}
	s.finishAudit(ctx, entry.ID, outcome)

	if out.Notify != nil {
		s.notify(ctx, *t, *out.Notify, out.Sale)
	}

	countRequest(name, string(outcome.Status))
	return Response{Status: http.StatusOK, Body: SuccessBody{
		Message:       "Webhook processed",
		TransactionID: in.TransactionID,
		Action:        string(out.Action),
	}}
}

// finishAudit records the outcome. A failure here does not change the
// response already decided for the delivery.
func (s *Service) finishAudit(ctx context.Context, id uuid.UUID, outcome model.AuditOutcome) {
	if err := s.audit.FinishAuditLog(ctx, id, outcome); err != nil {
		s.logger.ErrorContext(ctx, "Error updating audit log", "status", outcome.Status, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, t model.TenantContext, eventType model.EventType, sale *model.Sale) {
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	_, err := s.notifier.Dispatch(ctx, t, eventType, notification.Data{
		SaleID:        sale.ID,
		TransactionID: sale.TransactionID,
		CustomerName:  sale.Customer.Name,
		ProductName:   sale.ProductName,
		Value:         sale.Value,
		Gateway:       sale.Gateway,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error dispatching notification", "type", eventType, "error", err)
	}
}

func countUnmappedStatus(gateway string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`webhook_unmapped_status_total{gateway=%q}`, gateway)).Inc()
}

func countRequest(gateway, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`webhook_requests_total{gateway=%q,result=%q}`, gateway, result)).Inc()
}

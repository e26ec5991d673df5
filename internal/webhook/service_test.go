package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-service/internal/gateway"
	"payment-webhook-service/internal/memstore"
	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/notification"
	"payment-webhook-service/internal/reconcile"
	"payment-webhook-service/internal/tenant"
)

type partialEvent struct{}

func (partialEvent) Gateway() string { return "partial" }

// partialAdapter is a strict adapter that still reports missing fields as warnings.
type partialAdapter struct{}

func (partialAdapter) Name() string { return "partial" }
func (partialAdapter) Strict() bool { return true }

func (partialAdapter) Validate([]byte) (gateway.Event, []model.FieldError, error) {
	return partialEvent{}, []model.FieldError{{Field: "data.id", Rule: "required", Message: "data.id is required"}}, nil
}

func (partialAdapter) Normalize(gateway.Event) model.SaleInput {
	return model.SaleInput{
		TransactionID: model.UnknownTransactionID,
		Gateway:       "partial",
		Status:        model.StatusUnknown,
		RawStatus:     string(model.StatusUnknown),
	}
}

func TestService_StrictAdapterWarningsAreRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	org := model.TenantContext{ID: uuid.New(), Name: "Loja", Currency: "BRL", Locale: "pt-BR"}
	store.AddTenant(org, "s3cr3t")

	registry := gateway.NewRegistry()
	registry.Register(partialAdapter{})

	resolver := tenant.NewResolver(store, nil, tenant.Defaults{Currency: "BRL", Locale: "pt-BR"}, logger)
	dispatcher := notification.NewDispatcher(store, store, store, &recordingSender{}, logger)
	service := NewService(registry, resolver, store, reconcile.NewEngine(store, logger), dispatcher, logger)

	resp := service.Handle(context.Background(), Request{
		Gateway:     "partial",
		Credentials: tenant.Credentials{Secret: "s3cr3t"},
		Body:        []byte(`{}`),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	body, ok := resp.Body.(ValidationBody)
	require.True(t, ok)
	assert.Equal(t, "Invalid payload", body.Message)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "data.id", body.Errors[0].Field)

	audits := store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingValidationError, audits[0].ProcessingStatus)
	require.NotNil(t, audits[0].ErrorMessage)
	assert.Contains(t, *audits[0].ErrorMessage, "1 field(s) missing")
	assert.Equal(t, 0, store.SaleCount())
}

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"payment-webhook-service/internal/gateway"
	"payment-webhook-service/internal/memstore"
	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/notification"
	"payment-webhook-service/internal/reconcile"
	"payment-webhook-service/internal/tenant"
)

const pagarmePaid = `{
	"type": "order.paid",
	"data": {
		"id": "or_1",
		"status": "paid",
		"amount": 10050,
		"customer": {"name": "Ana"},
		"items": [{"description": "Curso"}]
	}
}`

type recordingSender struct {
	calls [][]string
	err   error
}

func (r *recordingSender) SendPush(_ context.Context, tokens []string, _ model.PushMessage) ([]model.PushResult, error) {
	r.calls = append(r.calls, tokens)
	if r.err != nil {
		return nil, r.err
	}
	results := make([]model.PushResult, 0, len(tokens))
	for _, t := range tokens {
		results = append(results, model.PushResult{Token: t})
	}
	return results, nil
}

type HandlerTestSuite struct {
	suite.Suite
	store  *memstore.Store
	sender *recordingSender
	tenant model.TenantContext
	server *httptest.Server
}

func (s *HandlerTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.store = memstore.New()
	s.sender = &recordingSender{}
	s.tenant = model.TenantContext{ID: uuid.New(), Name: "Loja", Currency: "BRL", Locale: "pt-BR"}
	s.store.AddTenant(s.tenant, "s3cr3t")
	s.store.AddProfile(s.tenant.ID, "tok-1")

	resolver := tenant.NewResolver(s.store, nil, tenant.Defaults{Currency: "BRL", Locale: "pt-BR"}, logger)
	engine := reconcile.NewEngine(s.store, logger)
	dispatcher := notification.NewDispatcher(s.store, s.store, s.store, s.sender, logger)
	service := NewService(gateway.NewDefaultRegistry(), resolver, s.store, engine, dispatcher, logger)

	mux := http.NewServeMux()
	NewHandler(service, 0, logger).Register(mux)
	s.server = httptest.NewServer(mux)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerTestSuite) post(path, body string) (int, map[string]any) {
	resp, err := http.Post(s.server.URL+path, "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *HandlerTestSuite) orgQuery() string {
	return "?organizationId=" + s.tenant.ID.String()
}

func (s *HandlerTestSuite) TestCreatesSaleAndNotifies() {
	t := s.T()

	status, body := s.post("/api/webhooks/pagarme"+s.orgQuery(), pagarmePaid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "or_1", body["transactionId"])
	assert.Equal(t, "created", body["action"])

	sale, ok := s.store.Sale(model.SaleKey{TenantID: s.tenant.ID, TransactionID: "or_1", Gateway: "pagarme"})
	require.True(t, ok)
	assert.Equal(t, model.StatusApproved, sale.Status)
	assert.Equal(t, "100.5", sale.Value.String())

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingSuccess, audits[0].ProcessingStatus)
	assert.Equal(t, "pagarme", audits[0].Source)
	require.NotNil(t, audits[0].TransactionID)
	assert.Equal(t, "or_1", *audits[0].TransactionID)

	assert.Len(t, s.store.Notifications(s.tenant.ID), 1)
	assert.Len(t, s.sender.calls, 1)
}

func (s *HandlerTestSuite) TestRepeatedDeliveryIsIdempotent() {
	t := s.T()

	for i := 0; i < 5; i++ {
		status, _ := s.post("/api/webhooks/pagarme/s3cr3t", pagarmePaid)
		require.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, 1, s.store.SaleCount())
	assert.Len(t, s.store.Notifications(s.tenant.ID), 1)

	audits := s.store.AuditLogs()
	require.Len(t, audits, 5)
	assert.Equal(t, model.ProcessingSuccess, audits[0].ProcessingStatus)
	for _, a := range audits[1:] {
		assert.Equal(t, model.ProcessingSuccessUpdated, a.ProcessingStatus)
	}
}

func (s *HandlerTestSuite) TestSecretQueryParameter() {
	status, body := s.post("/api/webhooks/pagarme?secret=s3cr3t", pagarmePaid)
	s.Equal(http.StatusOK, status)
	s.Equal("created", body["action"])
}

func (s *HandlerTestSuite) TestUnknownGateway() {
	t := s.T()

	status, body := s.post("/api/webhooks/stripe/s3cr3t", pagarmePaid)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown gateway")

	status, _ = s.post("/api/webhooks/stripe"+s.orgQuery(), pagarmePaid)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Empty(t, s.store.AuditLogs())
}

func (s *HandlerTestSuite) TestUnauthorized() {
	t := s.T()

	status, body := s.post("/api/webhooks/pagarme", pagarmePaid)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])

	status, _ = s.post("/api/webhooks/pagarme/wrong", pagarmePaid)
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Empty(t, s.store.AuditLogs())
}

func (s *HandlerTestSuite) TestStrictGatewayRejectsMissingFields() {
	t := s.T()

	status, body := s.post("/api/webhooks/hotmart"+s.orgQuery(), `{"event": "PURCHASE_APPROVED", "data": {"purchase": {"status": "APPROVED"}}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid payload", body["message"])
	assert.Len(t, body["errors"], 2)

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingValidationError, audits[0].ProcessingStatus)
	assert.Len(t, audits[0].ValidationErrors, 2)
	assert.Equal(t, 0, s.store.SaleCount())
}

func (s *HandlerTestSuite) TestTolerantGatewayStoresPlaceholders() {
	t := s.T()

	status, body := s.post("/api/webhooks/kiwify"+s.orgQuery(), `{"order_status": "paid", "Commissions": {"charge_amount": 4990}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.UnknownTransactionID, body["transactionId"])

	sale, ok := s.store.Sale(model.SaleKey{TenantID: s.tenant.ID, TransactionID: model.UnknownTransactionID, Gateway: "kiwify"})
	require.True(t, ok)
	assert.Equal(t, "49.9", sale.Value.String())

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingWarningMissingData, audits[0].ProcessingStatus)
	require.Len(t, audits[0].ValidationErrors, 1)
	assert.Equal(t, "order_id", audits[0].ValidationErrors[0].Field)
}

func (s *HandlerTestSuite) TestPersistenceFailure() {
	t := s.T()
	s.store.FailSales(errors.New("database unavailable"))

	status, body := s.post("/api/webhooks/pagarme"+s.orgQuery(), pagarmePaid)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to process webhook", body["message"])
	assert.Contains(t, body["error"], "database unavailable")

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingError, audits[0].ProcessingStatus)
	require.NotNil(t, audits[0].ErrorMessage)
	assert.Empty(t, s.store.Notifications(s.tenant.ID))
}

func (s *HandlerTestSuite) TestDisabledTemplateSkipsNotification() {
	t := s.T()
	s.store.SetTemplate(s.tenant.ID, model.EventSaleApproved, model.NotificationTemplate{Title: "t", Message: "m", Enabled: false})

	status, _ := s.post("/api/webhooks/pagarme"+s.orgQuery(), pagarmePaid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, s.store.SaleCount())
	assert.Empty(t, s.store.Notifications(s.tenant.ID))
	assert.Empty(t, s.sender.calls)
}

func (s *HandlerTestSuite) TestPushFailureDoesNotChangeResponse() {
	t := s.T()
	s.sender.err = errors.New("push provider down")

	status, body := s.post("/api/webhooks/pagarme"+s.orgQuery(), pagarmePaid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "created", body["action"])
	assert.Equal(t, "or_1", body["transactionId"])

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingSuccess, audits[0].ProcessingStatus)
	assert.Nil(t, audits[0].ErrorMessage)

	assert.Len(t, s.sender.calls, 1)
	assert.Len(t, s.store.Notifications(s.tenant.ID), 1)
}

func (s *HandlerTestSuite) TestTolerantGatewayMissingStatus() {
	t := s.T()

	status, body := s.post("/api/webhooks/kiwify"+s.orgQuery(), `{"order_id": "k2", "Commissions": {"charge_amount": ""}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "k2", body["transactionId"])

	sale, ok := s.store.Sale(model.SaleKey{TenantID: s.tenant.ID, TransactionID: "k2", Gateway: "kiwify"})
	require.True(t, ok)
	assert.Equal(t, model.StatusUnknown, sale.Status)
	assert.Equal(t, "unknown", sale.RawStatus)
	assert.True(t, sale.Value.IsZero())

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.ProcessingWarningMissingData, audits[0].ProcessingStatus)
	require.Len(t, audits[0].ValidationErrors, 1)
	assert.Equal(t, "order_status", audits[0].ValidationErrors[0].Field)
	assert.Empty(t, s.sender.calls)
}

func (s *HandlerTestSuite) TestUnmappedStatusIsStoredAndCounted() {
	t := s.T()
	counter := metrics.GetOrCreateCounter(`webhook_unmapped_status_total{gateway="pagarme"}`)
	before := counter.Get()

	body := strings.Replace(pagarmePaid, `"status": "paid"`, `"status": "partially_captured"`, 1)
	status, _ := s.post("/api/webhooks/pagarme"+s.orgQuery(), body)
	assert.Equal(t, http.StatusOK, status)

	sale, ok := s.store.Sale(model.SaleKey{TenantID: s.tenant.ID, TransactionID: "or_1", Gateway: "pagarme"})
	require.True(t, ok)
	assert.Equal(t, model.Status("partially_captured"), sale.Status)
	assert.Equal(t, before+1, counter.Get())
	assert.Empty(t, s.store.Notifications(s.tenant.ID))
}

func (s *HandlerTestSuite) TestLiveness() {
	t := s.T()

	for _, path := range []string{"/api/webhooks/pagarme", "/api/webhooks/kiwify/s3cr3t", "/api/webhooks/anything"} {
		resp, err := http.Get(s.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.Empty(t, s.store.AuditLogs())
}

func (s *HandlerTestSuite) TestRedactsSecretHeaders() {
	t := s.T()

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/webhooks/pagarme"+s.orgQuery(), strings.NewReader(pagarmePaid))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Hub-Signature", "sha1=123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	audits := s.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, "[redacted]", audits[0].Headers["Authorization"])
	assert.Equal(t, "sha1=123", audits[0].Headers["X-Hub-Signature"])
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

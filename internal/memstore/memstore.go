// Package memstore keeps every collection in process memory. It backs local
// runs without Postgres and the pipeline tests.
package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/reconcile"
	"payment-webhook-service/internal/tenant"
)

type templateKey struct {
	tenantID  uuid.UUID
	eventType model.EventType
}

type profile struct {
	id       uuid.UUID
	tenantID uuid.UUID
	tokens   []string
}

type Store struct {
	// txMu serializes sale transactions, standing in for row locks.
	txMu sync.Mutex
	mu   sync.Mutex

	sales         map[model.SaleKey]*model.Sale
	outbox        []model.OutboxEvent
	audits        map[uuid.UUID]*model.WebhookAuditLog
	auditOrder    []uuid.UUID
	templates     map[templateKey]model.NotificationTemplate
	notifications []model.InAppNotification
	profiles      []*profile
	tenants       map[uuid.UUID]model.TenantContext
	secrets       map[string]uuid.UUID

	saleErr error
}

func New() *Store {
	return &Store{
		sales:     make(map[model.SaleKey]*model.Sale),
		audits:    make(map[uuid.UUID]*model.WebhookAuditLog),
		templates: make(map[templateKey]model.NotificationTemplate),
		tenants:   make(map[uuid.UUID]model.TenantContext),
		secrets:   make(map[string]uuid.UUID),
	}
}

// FailSales makes every following sale transaction fail with err.
// A nil err restores normal behaviour.
func (s *Store) FailSales(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saleErr = err
}

// ---- sales ----

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx reconcile.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	failWith := s.saleErr
	s.mu.Unlock()
	if failWith != nil {
		return failWith
	}

	tx := &saleTx{store: s, staged: make(map[model.SaleKey]*model.Sale)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, sale := range tx.staged {
		s.sales[k] = sale
	}
	s.outbox = append(s.outbox, tx.events...)
	return nil
}

type saleTx struct {
	store  *Store
	staged map[model.SaleKey]*model.Sale
	events []model.OutboxEvent
}

func (t *saleTx) lookup(key model.SaleKey) *model.Sale {
	if sale, ok := t.staged[key]; ok {
		return sale
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if sale, ok := t.store.sales[key]; ok {
		c := cloneSale(sale)
		t.staged[key] = c
		return c
	}
	return nil
}

func (t *saleTx) lookupByID(id uuid.UUID) *model.Sale {
	for _, sale := range t.staged {
		if sale.ID == id {
			return sale
		}
	}
	t.store.mu.Lock()
	var key *model.SaleKey
	for k, sale := range t.store.sales {
		if sale.ID == id {
			k := k
			key = &k
			break
		}
	}
	t.store.mu.Unlock()
	if key == nil {
		return nil
	}
	return t.lookup(*key)
}

func (t *saleTx) FindByKey(_ context.Context, key model.SaleKey) (*model.Sale, error) {
	sale := t.lookup(key)
	if sale == nil {
		return nil, nil
	}
	return cloneSale(sale), nil
}

func (t *saleTx) Insert(_ context.Context, sale *model.Sale) (bool, error) {
	if t.lookup(sale.Key()) != nil {
		return false, nil
	}
	t.staged[sale.Key()] = cloneSale(sale)
	return true, nil
}

func (t *saleTx) Update(_ context.Context, sale *model.Sale) error {
	current := t.lookupByID(sale.ID)
	if current == nil {
		return errors.Errorf("sale %s not found", sale.ID)
	}
	current.Status = sale.Status
	current.RawStatus = sale.RawStatus
	current.Payload = append(json.RawMessage(nil), sale.Payload...)
	current.ReceivedAt = sale.ReceivedAt
	current.UpdatedAt = sale.UpdatedAt
	return nil
}

func (t *saleTx) AppendHistory(_ context.Context, saleID uuid.UUID, entry model.HistoryEntry) error {
	current := t.lookupByID(saleID)
	if current == nil {
		return errors.Errorf("sale %s not found", saleID)
	}
	current.ProcessingHistory = append(current.ProcessingHistory, entry)
	return nil
}

func (t *saleTx) EnqueueEvent(_ context.Context, event model.SaleEvent) error {
	now := time.Now()
	t.events = append(t.events, model.OutboxEvent{ID: event.ID, Event: event, CreatedAt: now, ScheduledAt: &now})
	return nil
}

// Sale returns a copy of the stored sale for key.
func (s *Store) Sale(key model.SaleKey) (*model.Sale, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[key]
	if !ok {
		return nil, false
	}
	return cloneSale(sale), true
}

func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

// ClaimBatch hands up to limit due outbox events to fn and keeps the changes
// fn makes to them.
func (s *Store) ClaimBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error {
	s.mu.Lock()
	now := time.Now()
	var idx []int
	var batch []*model.OutboxEvent
	for i := range s.outbox {
		if len(batch) == limit {
			break
		}
		e := s.outbox[i]
		if e.ScheduledAt == nil || e.ScheduledAt.After(now) {
			continue
		}
		idx = append(idx, i)
		batch = append(batch, &e)
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := fn(ctx, batch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for j, i := range idx {
		s.outbox[i] = *batch[j]
	}
	return nil
}

func cloneSale(in *model.Sale) *model.Sale {
	out := *in
	out.ProcessingHistory = append([]model.HistoryEntry(nil), in.ProcessingHistory...)
	out.Payload = append(json.RawMessage(nil), in.Payload...)
	if in.Tracking != nil {
		out.Tracking = make(model.Tracking, len(in.Tracking))
		for k, v := range in.Tracking {
			out.Tracking[k] = v
		}
	}
	return &out
}

// ---- audit log ----

func (s *Store) CreateAuditLog(_ context.Context, entry *model.WebhookAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *entry
	s.audits[entry.ID] = &c
	s.auditOrder = append(s.auditOrder, entry.ID)
	return nil
}

func (s *Store) FinishAuditLog(_ context.Context, id uuid.UUID, outcome model.AuditOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.audits[id]
	if !ok {
		return errors.Errorf("audit log %s not found", id)
	}
	now := time.Now().UTC()
	entry.ProcessingStatus = outcome.Status
	entry.ProcessedAt = &now
	entry.ValidationErrors = outcome.ValidationErrors
	if outcome.TransactionID != "" {
		txID := outcome.TransactionID
		entry.TransactionID = &txID
	}
	if outcome.ErrorMessage != "" {
		msg := outcome.ErrorMessage
		entry.ErrorMessage = &msg
	}
	return nil
}

// AuditLogs returns copies of every audit entry in creation order.
func (s *Store) AuditLogs() []model.WebhookAuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WebhookAuditLog, 0, len(s.auditOrder))
	for _, id := range s.auditOrder {
		out = append(out, *s.audits[id])
	}
	return out
}

// ---- notifications ----

func (s *Store) SetTemplate(tenantID uuid.UUID, eventType model.EventType, tpl model.NotificationTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[templateKey{tenantID, eventType}] = tpl
}

func (s *Store) LoadTemplate(_ context.Context, tenantID uuid.UUID, eventType model.EventType) (*model.NotificationTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.templates[templateKey{tenantID, eventType}]
	if !ok {
		return nil, nil
	}
	return &tpl, nil
}

func (s *Store) CreateNotification(_ context.Context, n *model.InAppNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) Notifications(tenantID uuid.UUID) []model.InAppNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InAppNotification
	for _, n := range s.notifications {
		if n.TenantID == tenantID {
			out = append(out, n)
		}
	}
	return out
}

// ---- profiles ----

func (s *Store) AddProfile(tenantID uuid.UUID, tokens ...string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &profile{id: uuid.New(), tenantID: tenantID, tokens: append([]string(nil), tokens...)}
	s.profiles = append(s.profiles, p)
	return p.id
}

func (s *Store) ListDeviceTokens(_ context.Context, tenantID uuid.UUID) ([]model.ProfileTokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProfileTokens
	for _, p := range s.profiles {
		if p.tenantID == tenantID {
			out = append(out, model.ProfileTokens{ProfileID: p.id, Tokens: append([]string(nil), p.tokens...)})
		}
	}
	return out, nil
}

func (s *Store) PruneTokens(_ context.Context, tenantID uuid.UUID, tokens []string) error {
	drop := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		drop[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.tenantID != tenantID {
			continue
		}
		kept := p.tokens[:0]
		for _, t := range p.tokens {
			if _, gone := drop[t]; !gone {
				kept = append(kept, t)
			}
		}
		p.tokens = kept
	}
	return nil
}

// ---- tenants ----

func (s *Store) AddTenant(t model.TenantContext, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	if secret != "" {
		s.secrets[secret] = t.ID
	}
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (*model.TenantContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return &t, nil
}

func (s *Store) FindBySecret(_ context.Context, secret string) (*model.TenantContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.secrets[secret]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	t := s.tenants[id]
	return &t, nil
}

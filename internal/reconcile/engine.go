package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

var (
	reconcileCreatedCounter = metrics.GetOrCreateCounter(`reconcile_total{action="created"}`)
	reconcileUpdatedCounter = metrics.GetOrCreateCounter(`reconcile_total{action="updated"}`)
	reconcileErrorCounter   = metrics.GetOrCreateCounter(`reconcile_total{action="error"}`)
	reconcileRaceCounter    = metrics.GetOrCreateCounter(`reconcile_insert_conflicts_total`)

	reconcileDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_duration_milliseconds`)
)

// Outcome describes what a reconciliation did to the sale.
type Outcome struct {
	Sale           *model.Sale
	Action         Action
	PreviousStatus model.Status
	// Notify is set when the transition warrants a notification.
	Notify *model.EventType
}

type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Reconcile creates or updates the sale identified by (tenant, transaction,
// gateway). The lookup and the write happen in one transaction so two
// concurrent deliveries cannot both see the sale as absent or both observe
// the status before it changed.
func (e *Engine) Reconcile(ctx context.Context, tenant model.TenantContext, in model.SaleInput) (*Outcome, error) {
	startTime := time.Now()
	defer func() {
		reconcileDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	now := e.now().UTC()
	key := model.SaleKey{TenantID: tenant.ID, TransactionID: in.TransactionID, Gateway: in.Gateway}
	entry := model.HistoryEntry{Timestamp: now, EventType: in.EventType, Status: in.Status}

	var out *Outcome
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		out = nil

		existing, err := tx.FindByKey(ctx, key)
		if err != nil {
			return err
		}

		if existing == nil {
			sale := newSale(tenant, in, entry, now)
			inserted, err := tx.Insert(ctx, sale)
			if err != nil {
				return err
			}
			if inserted {
				out = &Outcome{Sale: sale, Action: ActionCreated, Notify: notifyOnCreate(sale.Status)}
				return tx.EnqueueEvent(ctx, saleEvent(sale, out, now))
			}

			// another delivery created it first; continue as an update
			reconcileRaceCounter.Inc()
			e.logger.WarnContext(ctx, "Sale created concurrently, retrying as update", "transactionId", key.TransactionID)
			if existing, err = tx.FindByKey(ctx, key); err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("sale %s/%s missing after insert conflict", key.Gateway, key.TransactionID)
			}
		}

		out = &Outcome{
			Sale:           existing,
			Action:         ActionUpdated,
			PreviousStatus: existing.Status,
			Notify:         notifyOnUpdate(existing, in.Status),
		}

		if err := tx.AppendHistory(ctx, existing.ID, entry); err != nil {
			return err
		}
		existing.ProcessingHistory = append(existing.ProcessingHistory, entry)
		existing.Status = in.Status
		existing.RawStatus = in.RawStatus
		existing.Payload = in.Payload
		existing.ReceivedAt = now
		existing.UpdatedAt = now
		if err := tx.Update(ctx, existing); err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, saleEvent(existing, out, now))
	})
	if err != nil {
		reconcileErrorCounter.Inc()
		return nil, errors.Wrapf(err, "reconcile %s transaction %s", in.Gateway, in.TransactionID)
	}

	if out.Action == ActionCreated {
		reconcileCreatedCounter.Inc()
	} else {
		reconcileUpdatedCounter.Inc()
	}
	e.logger.InfoContext(ctx, "Sale reconciled",
		"action", out.Action,
		"transactionId", in.TransactionID,
		"previousStatus", out.PreviousStatus,
		"status", in.Status,
		"notify", out.Notify != nil)
	return out, nil
}

func newSale(tenant model.TenantContext, in model.SaleInput, first model.HistoryEntry, now time.Time) *model.Sale {
	return &model.Sale{
		ID:                uuid.New(),
		TenantID:          tenant.ID,
		TransactionID:     in.TransactionID,
		Gateway:           in.Gateway,
		Status:            in.Status,
		RawStatus:         in.RawStatus,
		Customer:          in.Customer,
		ProductName:       in.ProductName,
		Value:             in.Value,
		NetValue:          in.NetValue,
		Tracking:          in.Tracking,
		Payload:           in.Payload,
		ProcessingHistory: []model.HistoryEntry{first},
		CreatedAt:         now,
		ReceivedAt:        now,
		UpdatedAt:         now,
	}
}

func saleEvent(sale *model.Sale, out *Outcome, now time.Time) model.SaleEvent {
	return model.SaleEvent{
		ID:             uuid.New(),
		TenantID:       sale.TenantID,
		SaleID:         sale.ID,
		TransactionID:  sale.TransactionID,
		Gateway:        sale.Gateway,
		Action:         string(out.Action),
		PreviousStatus: out.PreviousStatus,
		Status:         sale.Status,
		Value:          sale.Value,
		OccurredAt:     now,
	}
}

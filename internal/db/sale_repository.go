package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/reconcile"
)

const saleColumns = `id, tenant_id, transaction_id, gateway, status, raw_status,
	customer_name, customer_email, customer_phone, customer_document, product_name,
	value, net_value, tracking, payload, processing_history, created_at, received_at, updated_at`

type SaleRepository struct {
	pool *pgxpool.Pool
}

func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// InTx runs fn in a read-committed transaction and commits when it returns nil.
func (r *SaleRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx reconcile.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &saleTx{tx: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit transaction")
}

// GetByKey reads a sale outside of any transaction.
func (r *SaleRepository) GetByKey(ctx context.Context, key model.SaleKey) (*model.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE tenant_id = $1 AND transaction_id = $2 AND gateway = $3`
	return scanSale(r.pool.QueryRow(ctx, query, key.TenantID, key.TransactionID, key.Gateway))
}

type saleTx struct {
	tx pgx.Tx
}

func (t *saleTx) FindByKey(ctx context.Context, key model.SaleKey) (*model.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales
	          WHERE tenant_id = $1 AND transaction_id = $2 AND gateway = $3
	          FOR UPDATE`
	return scanSale(t.tx.QueryRow(ctx, query, key.TenantID, key.TransactionID, key.Gateway))
}

func (t *saleTx) Insert(ctx context.Context, s *model.Sale) (bool, error) {
	tracking, err := json.Marshal(s.Tracking)
	if err != nil {
		return false, errors.Wrap(err, "encode tracking")
	}
	history, err := json.Marshal(s.ProcessingHistory)
	if err != nil {
		return false, errors.Wrap(err, "encode history")
	}

	query := `INSERT INTO sales (` + saleColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	          ON CONFLICT (tenant_id, transaction_id, gateway) DO NOTHING`
	tag, err := t.tx.Exec(ctx, query,
		s.ID, s.TenantID, s.TransactionID, s.Gateway, s.Status, s.RawStatus,
		s.Customer.Name, s.Customer.Email, s.Customer.Phone, s.Customer.Document, s.ProductName,
		s.Value, s.NetValue, string(tracking), bodyBytes(s.Payload), string(history),
		s.CreatedAt, s.ReceivedAt, s.UpdatedAt)
	if err != nil {
		return false, errors.Wrap(err, "insert sale")
	}
	return tag.RowsAffected() == 1, nil
}

func (t *saleTx) Update(ctx context.Context, s *model.Sale) error {
	query := `UPDATE sales
	          SET status = $2, raw_status = $3, payload = $4, received_at = $5, updated_at = $6
	          WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query, s.ID, s.Status, s.RawStatus, bodyBytes(s.Payload), s.ReceivedAt, s.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update sale")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("sale %s not found", s.ID)
	}
	return nil
}

func (t *saleTx) AppendHistory(ctx context.Context, saleID uuid.UUID, entry model.HistoryEntry) error {
	raw, err := json.Marshal([]model.HistoryEntry{entry})
	if err != nil {
		return errors.Wrap(err, "encode history entry")
	}
	query := `UPDATE sales SET processing_history = processing_history || $2::jsonb WHERE id = $1`
	_, err = t.tx.Exec(ctx, query, saleID, string(raw))
	return errors.Wrap(err, "append history")
}

func (t *saleTx) EnqueueEvent(ctx context.Context, event model.SaleEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode sale event")
	}
	now := time.Now().UTC()
	query := `INSERT INTO sale_event_outbox (id, payload, created_at, scheduled_at) VALUES ($1, $2, $3, $3)`
	_, err = t.tx.Exec(ctx, query, event.ID, string(raw), now)
	return errors.Wrap(err, "enqueue sale event")
}

func scanSale(row pgx.Row) (*model.Sale, error) {
	var s model.Sale
	var tracking, payload, history []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.TransactionID, &s.Gateway, &s.Status, &s.RawStatus,
		&s.Customer.Name, &s.Customer.Email, &s.Customer.Phone, &s.Customer.Document, &s.ProductName,
		&s.Value, &s.NetValue, &tracking, &payload, &history, &s.CreatedAt, &s.ReceivedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan sale")
	}

	if err := json.Unmarshal(tracking, &s.Tracking); err != nil {
		return nil, errors.Wrap(err, "decode tracking")
	}
	if err := json.Unmarshal(history, &s.ProcessingHistory); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	s.Payload = payload
	return &s, nil
}


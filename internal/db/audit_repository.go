package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) CreateAuditLog(ctx context.Context, e *model.WebhookAuditLog) error {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return errors.Wrap(err, "encode headers")
	}
	query := `INSERT INTO webhook_audit_logs (id, tenant_id, source, headers, body, received_at, processing_status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.pool.Exec(ctx, query, e.ID, e.TenantID, e.Source, string(headers), bodyBytes(e.Body), e.ReceivedAt, e.ProcessingStatus)
	return errors.Wrap(err, "insert audit log")
}

func (r *AuditRepository) FinishAuditLog(ctx context.Context, id uuid.UUID, o model.AuditOutcome) error {
	var validationErrors *string
	if len(o.ValidationErrors) > 0 {
		raw, err := json.Marshal(o.ValidationErrors)
		if err != nil {
			return errors.Wrap(err, "encode validation errors")
		}
		s := string(raw)
		validationErrors = &s
	}

	query := `UPDATE webhook_audit_logs
	          SET processing_status = $2, transaction_id = $3, error_message = $4,
	              validation_errors = $5::jsonb, processed_at = $6
	          WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, o.Status, nullable(o.TransactionID), nullable(o.ErrorMessage),
		validationErrors, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "update audit log")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("audit log %s not found", id)
	}
	return nil
}

func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.WebhookAuditLog, error) {
	query := `SELECT id, tenant_id, source, headers, body, received_at, processing_status,
	                 transaction_id, error_message, validation_errors, processed_at
	          FROM webhook_audit_logs WHERE id = $1`

	var e model.WebhookAuditLog
	var headers, validationErrors, body []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.TenantID, &e.Source, &headers, &body, &e.ReceivedAt,
		&e.ProcessingStatus, &e.TransactionID, &e.ErrorMessage, &validationErrors, &e.ProcessedAt)
	if err != nil {
		return nil, errors.Wrap(err, "select audit log")
	}
	if err := json.Unmarshal(headers, &e.Headers); err != nil {
		return nil, errors.Wrap(err, "decode headers")
	}
	if len(validationErrors) > 0 {
		if err := json.Unmarshal(validationErrors, &e.ValidationErrors); err != nil {
			return nil, errors.Wrap(err, "decode validation errors")
		}
	}
	e.Body = json.RawMessage(body)
	return &e, nil
}

// bodyBytes stores deliveries verbatim, including bytes that are not valid text.
func bodyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

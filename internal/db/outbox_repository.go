package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// ClaimBatch locks up to limit due events, hands them to fn and writes back
// the fields fn changed. Rows locked by another producer are skipped.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `SELECT id, payload, created_at, scheduled_at, published_at, publish_attempts, error
	          FROM sale_event_outbox
	          WHERE scheduled_at IS NOT NULL AND scheduled_at <= now()
	          ORDER BY scheduled_at
	          LIMIT $1
	          FOR UPDATE SKIP LOCKED`
	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return errors.Wrap(err, "select outbox events")
	}

	var events []*model.OutboxEvent
	for rows.Next() {
		var e model.OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &payload, &e.CreatedAt, &e.ScheduledAt, &e.PublishedAt, &e.PublishAttempts, &e.Error); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan outbox event")
		}
		if err := json.Unmarshal(payload, &e.Event); err != nil {
			rows.Close()
			return errors.Wrap(err, "decode outbox payload")
		}
		events = append(events, &e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate outbox events")
	}

	if len(events) == 0 {
		return nil
	}

	if err := fn(ctx, events); err != nil {
		return err
	}

	update := `UPDATE sale_event_outbox
	           SET scheduled_at = $2, published_at = $3, publish_attempts = $4, error = $5
	           WHERE id = $1`
	for _, e := range events {
		if _, err := tx.Exec(ctx, update, e.ID, e.ScheduledAt, e.PublishedAt, e.PublishAttempts, e.Error); err != nil {
			return errors.Wrapf(err, "update outbox event %s", e.ID)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit transaction")
}

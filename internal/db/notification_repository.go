package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
)

// NotificationRepository stores templates, in-app notifications and the
// device tokens registered on profiles.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) LoadTemplate(ctx context.Context, tenantID uuid.UUID, eventType model.EventType) (*model.NotificationTemplate, error) {
	query := `SELECT title, message, enabled FROM notification_templates WHERE tenant_id = $1 AND event_type = $2`

	var t model.NotificationTemplate
	err := r.pool.QueryRow(ctx, query, tenantID, eventType).Scan(&t.Title, &t.Message, &t.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select notification template")
	}
	return &t, nil
}

func (r *NotificationRepository) UpsertTemplate(ctx context.Context, tenantID uuid.UUID, eventType model.EventType, t model.NotificationTemplate) error {
	query := `INSERT INTO notification_templates (tenant_id, event_type, title, message, enabled)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (tenant_id, event_type) DO UPDATE
	          SET title = EXCLUDED.title, message = EXCLUDED.message, enabled = EXCLUDED.enabled`
	_, err := r.pool.Exec(ctx, query, tenantID, eventType, t.Title, t.Message, t.Enabled)
	return errors.Wrap(err, "upsert notification template")
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.InAppNotification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	query := `INSERT INTO in_app_notifications (id, tenant_id, type, title, message, read, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.pool.Exec(ctx, query, n.ID, n.TenantID, n.Type, n.Title, n.Message, n.Read, string(metadata), n.CreatedAt)
	return errors.Wrap(err, "insert in-app notification")
}

func (r *NotificationRepository) ListNotifications(ctx context.Context, tenantID uuid.UUID) ([]model.InAppNotification, error) {
	query := `SELECT id, tenant_id, type, title, message, read, metadata, created_at
	          FROM in_app_notifications WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "select in-app notifications")
	}
	defer rows.Close()

	var out []model.InAppNotification
	for rows.Next() {
		var n model.InAppNotification
		var metadata []byte
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Type, &n.Title, &n.Message, &n.Read, &metadata, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan in-app notification")
		}
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, errors.Wrap(err, "decode metadata")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterate in-app notifications")
}

func (r *NotificationRepository) ListDeviceTokens(ctx context.Context, tenantID uuid.UUID) ([]model.ProfileTokens, error) {
	query := `SELECT id, device_tokens FROM profiles
	          WHERE tenant_id = $1 AND cardinality(device_tokens) > 0
	          ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "select device tokens")
	}
	defer rows.Close()

	var out []model.ProfileTokens
	for rows.Next() {
		var p model.ProfileTokens
		if err := rows.Scan(&p.ProfileID, &p.Tokens); err != nil {
			return nil, errors.Wrap(err, "scan device tokens")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate device tokens")
}

// PruneTokens removes the given tokens from every profile of the tenant in
// one statement.
func (r *NotificationRepository) PruneTokens(ctx context.Context, tenantID uuid.UUID, tokens []string) error {
	query := `UPDATE profiles
	          SET device_tokens = ARRAY(SELECT t FROM unnest(device_tokens) AS t WHERE t <> ALL($2::text[]))
	          WHERE tenant_id = $1 AND device_tokens && $2::text[]`
	_, err := r.pool.Exec(ctx, query, tenantID, tokens)
	return errors.Wrap(err, "prune device tokens")
}

func (r *NotificationRepository) AddProfile(ctx context.Context, tenantID uuid.UUID, tokens []string) (uuid.UUID, error) {
	id := uuid.New()
	query := `INSERT INTO profiles (id, tenant_id, device_tokens) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, id, tenantID, tokens)
	return id, errors.Wrap(err, "insert profile")
}

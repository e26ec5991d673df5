package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/tenant"
)

type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TenantContext, error) {
	return r.find(ctx, `SELECT id, name, currency, locale FROM tenants WHERE id = $1`, id)
}

func (r *TenantRepository) FindBySecret(ctx context.Context, secret string) (*model.TenantContext, error) {
	return r.find(ctx, `SELECT id, name, currency, locale FROM tenants WHERE webhook_secret = $1`, secret)
}

func (r *TenantRepository) find(ctx context.Context, query string, arg any) (*model.TenantContext, error) {
	var t model.TenantContext
	err := r.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.Currency, &t.Locale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tenant")
	}
	return &t, nil
}

func (r *TenantRepository) Create(ctx context.Context, t model.TenantContext, secret string) error {
	query := `INSERT INTO tenants (id, name, webhook_secret, currency, locale) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, t.ID, t.Name, nullable(secret), t.Currency, t.Locale)
	return errors.Wrap(err, "insert tenant")
}

package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"payment-webhook-service/internal/model"
)

var (
	ErrNotFound           = errors.New("tenant not found")
	ErrMissingCredentials = errors.New("organizationId or secret is required")
)

// Store looks tenants up in the system of record.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.TenantContext, error)
	FindBySecret(ctx context.Context, secret string) (*model.TenantContext, error)
}

// Credentials identify the tenant of an inbound webhook. OrganizationID wins
// when both are present.
type Credentials struct {
	OrganizationID string
	Secret         string
}

type Defaults struct {
	Currency string
	Locale   string
}

type Resolver struct {
	store    Store
	cache    Cache
	defaults Defaults
	logger   *slog.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(store Store, cache Cache, defaults Defaults, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, defaults: defaults, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*model.TenantContext, error) {
	var key string
	var lookup func() (*model.TenantContext, error)

	switch {
	case creds.OrganizationID != "":
		id, err := uuid.Parse(creds.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("organization %q: %w", creds.OrganizationID, ErrNotFound)
		}
		key = "id:" + id.String()
		lookup = func() (*model.TenantContext, error) { return r.store.FindByID(ctx, id) }
	case creds.Secret != "":
		key = secretKey(creds.Secret)
		lookup = func() (*model.TenantContext, error) { return r.store.FindBySecret(ctx, creds.Secret) }
	default:
		return nil, ErrMissingCredentials
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.WarnContext(ctx, "Tenant cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	t, err := lookup()
	if err != nil {
		return nil, err
	}
	r.applyDefaults(t)

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, t); err != nil {
			r.logger.WarnContext(ctx, "Tenant cache write failed", "error", err)
		}
	}
	return t, nil
}

func (r *Resolver) applyDefaults(t *model.TenantContext) {
	if t.Currency == "" {
		t.Currency = r.defaults.Currency
	}
	if t.Locale == "" {
		t.Locale = r.defaults.Locale
	}
}

// secretKey names a secret lookup in the cache without storing the secret itself.
func secretKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return "secret:" + hex.EncodeToString(sum[:])
}

package tenant_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-service/internal/memstore"
	"payment-webhook-service/internal/model"
	"payment-webhook-service/internal/tenant"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var defaults = tenant.Defaults{Currency: "BRL", Locale: "pt-BR"}

type mapCache struct {
	entries map[string]model.TenantContext
	gets    int
}

func (c *mapCache) Get(_ context.Context, key string) (*model.TenantContext, error) {
	c.gets++
	t, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (c *mapCache) Set(_ context.Context, key string, t *model.TenantContext) error {
	c.entries[key] = *t
	return nil
}

func seeded() (*memstore.Store, model.TenantContext) {
	store := memstore.New()
	t := model.TenantContext{ID: uuid.New(), Name: "Loja"}
	store.AddTenant(t, "s3cr3t")
	return store, t
}

func TestResolve_ByOrganizationID(t *testing.T) {
	store, want := seeded()
	r := tenant.NewResolver(store, nil, defaults, discard)

	got, err := r.Resolve(context.Background(), tenant.Credentials{OrganizationID: want.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "BRL", got.Currency)
	assert.Equal(t, "pt-BR", got.Locale)
}

func TestResolve_BySecret(t *testing.T) {
	store, want := seeded()
	r := tenant.NewResolver(store, nil, defaults, discard)

	got, err := r.Resolve(context.Background(), tenant.Credentials{Secret: "s3cr3t"})
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestResolve_Failures(t *testing.T) {
	store, _ := seeded()
	r := tenant.NewResolver(store, nil, defaults, discard)

	tests := []struct {
		name  string
		creds tenant.Credentials
		want  error
	}{
		{"no credentials", tenant.Credentials{}, tenant.ErrMissingCredentials},
		{"malformed id", tenant.Credentials{OrganizationID: "not-a-uuid"}, tenant.ErrNotFound},
		{"unknown id", tenant.Credentials{OrganizationID: uuid.NewString()}, tenant.ErrNotFound},
		{"unknown secret", tenant.Credentials{Secret: "nope"}, tenant.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.creds)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolve_UsesCache(t *testing.T) {
	store, want := seeded()
	cache := &mapCache{entries: map[string]model.TenantContext{}}
	r := tenant.NewResolver(store, cache, defaults, discard)

	_, err := r.Resolve(context.Background(), tenant.Credentials{Secret: "s3cr3t"})
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	var key string
	for k := range cache.entries {
		key = k
	}
	sum := sha256.Sum256([]byte("s3cr3t"))
	assert.Equal(t, "secret:"+hex.EncodeToString(sum[:]), key)
	assert.NotContains(t, key, "s3cr3t")

	cached := cache.entries[key]
	cached.Name = "from cache"
	cache.entries[key] = cached

	got, err := r.Resolve(context.Background(), tenant.Credentials{Secret: "s3cr3t"})
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "from cache", got.Name)
	assert.Equal(t, 2, cache.gets)
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisCache_RoundTrip(t *testing.T) {
	client := redisClient(t)
	cache := tenant.NewRedisCache(client, time.Minute)
	ctx := context.Background()

	key := fmt.Sprintf("id:%s", uuid.NewString())
	miss, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, miss)

	want := &model.TenantContext{ID: uuid.New(), Name: "Loja", Currency: "BRL", Locale: "pt-BR"}
	require.NoError(t, cache.Set(ctx, key, want))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, "tenant:"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

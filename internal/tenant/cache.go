package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"payment-webhook-service/internal/model"
)

const keyPrefix = "tenant:"

var (
	cacheHitCounter  = metrics.GetOrCreateCounter(`tenant_cache_total{result="hit"}`)
	cacheMissCounter = metrics.GetOrCreateCounter(`tenant_cache_total{result="miss"}`)
)

// Cache holds resolved tenants. Get returns nil without error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*model.TenantContext, error)
	Set(ctx context.Context, key string, t *model.TenantContext) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.TenantContext, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheMissCounter.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var t model.TenantContext
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, errors.Wrap(err, "decode cached tenant")
	}
	cacheHitCounter.Inc()
	return &t, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, t *model.TenantContext) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode tenant")
	}
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(), "redis set")
}

// Package tier resolves a tenant's subscription tier for tool execution.
// Lookups go through a redis cache so the execution pipeline does not hit the
// tenants table on every run; any cache or store failure falls back to the
// default tier rather than blocking an execution.
package tier

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

const cacheKeyPrefix = "tenant_tier:"

type Resolver struct {
	tenants store.TenantStore
	redis   *redis.Client
	ttl     time.Duration
}

// NewResolver accepts a nil redis client; caching is then skipped entirely.
func NewResolver(tenants store.TenantStore, redisClient *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{tenants: tenants, redis: redisClient, ttl: ttl}
}

func (r *Resolver) Resolve(ctx context.Context, tenantID string) models.Tier {
	if r.redis != nil {
		cached, err := r.redis.Get(ctx, cacheKeyPrefix+tenantID).Result()
		if err == nil && cached != "" {
			return models.Tier(cached)
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("[Tier] Cache read failed for tenant %s: %v", tenantID, err)
		}
	}

	tier, err := r.tenants.GetTier(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[Tier] Lookup failed for tenant %s: %v", tenantID, err)
		}
		return models.DefaultTier
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, cacheKeyPrefix+tenantID, string(tier), r.ttl).Err(); err != nil {
			log.Printf("[Tier] Cache write failed for tenant %s: %v", tenantID, err)
		}
	}
	return tier
}

// Invalidate drops the cached tier, e.g. after a subscription change.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, cacheKeyPrefix+tenantID).Err(); err != nil {
		log.Printf("[Tier] Cache invalidate failed for tenant %s: %v", tenantID, err)
	}
}

package tier

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsched/internal/models"
	"agentsched/internal/store/mocks"
)

func setupResolver(t *testing.T) (*Resolver, *mocks.MockTenantStore, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	tenants := mocks.NewMockTenantStore()
	return NewResolver(tenants, client, time.Hour), tenants, srv
}

func TestResolve_CacheMissThenHit(t *testing.T) {
	resolver, tenants, srv := setupResolver(t)
	tenants.SetTier("tenant-1", models.TierEnterprise)

	tier := resolver.Resolve(context.Background(), "tenant-1")
	assert.Equal(t, models.TierEnterprise, tier)

	cached, err := srv.Get("tenant_tier:tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", cached)

	// A second resolve is served from the cache even if the store changes.
	tenants.SetTier("tenant-1", models.TierFree)
	assert.Equal(t, models.TierEnterprise, resolver.Resolve(context.Background(), "tenant-1"))
}

func TestResolve_UnknownTenantDefaults(t *testing.T) {
	resolver, _, _ := setupResolver(t)

	tier := resolver.Resolve(context.Background(), "nobody")
	assert.Equal(t, models.DefaultTier, tier)
}

func TestResolve_RedisDownFallsThrough(t *testing.T) {
	resolver, tenants, srv := setupResolver(t)
	tenants.SetTier("tenant-1", models.TierFree)
	srv.Close()

	tier := resolver.Resolve(context.Background(), "tenant-1")
	assert.Equal(t, models.TierFree, tier)
}

func TestResolve_NilRedisClient(t *testing.T) {
	tenants := mocks.NewMockTenantStore()
	tenants.SetTier("tenant-1", models.TierPro)
	resolver := NewResolver(tenants, nil, time.Hour)

	assert.Equal(t, models.TierPro, resolver.Resolve(context.Background(), "tenant-1"))
}

func TestInvalidate(t *testing.T) {
	resolver, tenants, srv := setupResolver(t)
	tenants.SetTier("tenant-1", models.TierFree)

	resolver.Resolve(context.Background(), "tenant-1")
	require.True(t, srv.Exists("tenant_tier:tenant-1"))

	resolver.Invalidate(context.Background(), "tenant-1")
	assert.False(t, srv.Exists("tenant_tier:tenant-1"))
}

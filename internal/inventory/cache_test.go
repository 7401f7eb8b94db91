package inventory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *BalanceCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBalanceCache(client, nil)
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "RM-001", 1)
	require.False(t, ok)

	cache.Set(ctx, Balance{ItemCode: "RM-001", WarehouseID: 1, CurrentQty: 12, ReservedQty: 2, ValuationRate: 5.5})
	bal, ok := cache.Get(ctx, "RM-001", 1)
	require.True(t, ok)
	require.InDelta(t, 12.0, bal.CurrentQty, 0.0001)
	require.InDelta(t, 10.0, bal.AvailableQty(), 0.0001)

	cache.Invalidate(ctx, "RM-001", 1)
	_, ok = cache.Get(ctx, "RM-001", 1)
	require.False(t, ok)
}

func TestBalanceCacheNilSafe(t *testing.T) {
	var cache *BalanceCache
	ctx := context.Background()

	_, ok := cache.Get(ctx, "RM-001", 1)
	require.False(t, ok)
	cache.Set(ctx, Balance{ItemCode: "RM-001", WarehouseID: 1})
	cache.Invalidate(ctx, "RM-001", 1)
}

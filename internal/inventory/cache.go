package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// balanceCacheTTL bounds staleness when an invalidation is lost.
const balanceCacheTTL = 5 * time.Minute

// BalanceCache caches stock balances in Redis. All methods are best effort;
// a cache failure never fails the read path.
type BalanceCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBalanceCache constructs BalanceCache.
func NewBalanceCache(client *redis.Client, logger *slog.Logger) *BalanceCache {
	return &BalanceCache{client: client, logger: logger}
}

func balanceKey(itemCode string, warehouseID int64) string {
	return fmt.Sprintf("stock:balance:%s:%d", itemCode, warehouseID)
}

// Get returns the cached balance and whether it was present.
func (c *BalanceCache) Get(ctx context.Context, itemCode string, warehouseID int64) (Balance, bool) {
	if c == nil || c.client == nil {
		return Balance{}, false
	}
	raw, err := c.client.Get(ctx, balanceKey(itemCode, warehouseID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("balance cache get", slog.Any("error", err))
		}
		return Balance{}, false
	}
	var bal Balance
	if err := json.Unmarshal(raw, &bal); err != nil {
		return Balance{}, false
	}
	return bal, true
}

// Set stores a balance snapshot.
func (c *BalanceCache) Set(ctx context.Context, balance Balance) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(balance)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(balance.ItemCode, balance.WarehouseID), raw, balanceCacheTTL).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache set", slog.Any("error", err))
	}
}

// Invalidate drops the cached balance after a mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, itemCode string, warehouseID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, balanceKey(itemCode, warehouseID)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache invalidate", slog.Any("error", err))
	}
}

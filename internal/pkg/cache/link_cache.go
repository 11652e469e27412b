package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const linkCacheTTL = 24 * time.Hour

// LinkCache is a Redis-backed read-through cache for the customer-id →
// account-id reverse lookup. Misses and Redis failures both fall back to the
// database, so the cache is purely an accelerator.
type LinkCache struct {
	client *redis.Client
}

func NewLinkCache() *LinkCache {
	return &LinkCache{client: GetClient()}
}

func linkKey(customerID string) string {
	return "customer_link:" + customerID
}

func (c *LinkCache) GetAccountID(ctx context.Context, customerID string) (uint, bool) {
	val, err := c.client.Get(ctx, linkKey(customerID)).Uint64()
	if err != nil {
		return 0, false
	}
	return uint(val), true
}

func (c *LinkCache) SetAccountID(ctx context.Context, customerID string, accountID uint) {
	_ = c.client.Set(ctx, linkKey(customerID), uint64(accountID), linkCacheTTL).Err()
}

func (c *LinkCache) Forget(ctx context.Context, customerID string) {
	_ = c.client.Del(ctx, linkKey(customerID)).Err()
}

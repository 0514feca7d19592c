package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

const loadTimeout = 3 * time.Second

// StatusCache is a cache-aside view of order status. Concurrent misses for the
// same key share one load. Only terminal statuses are stored: a pending read
// racing a settlement could otherwise outlive the settlement's Invalidate.
type StatusCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewStatusCache(rdb *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return &StatusCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached status or calls load and caches its result. Redis
// failures fall through to load.
func (c *StatusCache) Get(ctx context.Context, userID int64, ref string, load func(context.Context) (string, error)) (string, error) {
	key := fmt.Sprintf(KeyOrderStatus, userID, ref)
	if s, err := c.rdb.Get(ctx, key).Result(); err == nil && s != "" {
		return s, nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return load(ctx)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// shared by every waiter, so no single caller may cancel it
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		s, err := load(lctx)
		if err != nil {
			return "", err
		}
		if orders.Status(s).Terminal() {
			_ = c.rdb.Set(lctx, key, s, c.ttl).Err()
		}
		return s, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *StatusCache) Invalidate(ctx context.Context, userID int64, ref string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, userID, ref)).Err()
}

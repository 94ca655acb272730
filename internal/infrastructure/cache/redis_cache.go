package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"civicfix/internal/errs"
	"civicfix/internal/ports"
)

// RedisCache is the shared cache for multi-instance deployments. While the
// supervisor marks it unavailable every call is a no-op miss.
type RedisCache struct {
	client    *redis.Client
	prefix    string
	available atomic.Bool
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(url string, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "parse redis url"), errs.KindValidation)
	}

	c := &RedisCache{client: redis.NewClient(opts), prefix: prefix}
	c.available.Store(true)
	return c, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !c.available.Load() {
		return "", false, nil
	}

	value, err := c.client.Get(ctx, c.prefix+trimmedKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errs.WithKind(errs.Wrap(err, "redis get"), errs.KindUnavailable)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if !c.available.Load() {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.Set(ctx, c.prefix+trimmedKey, value, ttl).Err(); err != nil {
		return errs.WithKind(errs.Wrap(err, "redis set"), errs.KindUnavailable)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if !c.available.Load() {
		return nil
	}

	if err := c.client.Del(ctx, c.prefix+trimmedKey).Err(); err != nil {
		return errs.WithKind(errs.Wrap(err, "redis del"), errs.KindUnavailable)
	}
	return nil
}

// Health pings the server.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) SetAvailable(available bool) {
	c.available.Store(available)
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

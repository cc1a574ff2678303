package rediscache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

// Cache is one named cache stored in Redis.
type Cache struct {
	name    string
	manager *Manager
	keyBase string
	group   singleflight.Group
}

var _ cache.Cache = (*Cache)(nil)

func (c *Cache) Name() string {
	return c.name
}

// NativeCache returns the go-redis client.
func (c *Cache) NativeCache() any {
	return c.manager.client
}

func (c *Cache) Get(ctx context.Context, key string) (*cache.ValueWrapper, error) {
	raw, ok, err := c.lookup(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return cache.NewRawValue(raw, c.manager.codec), nil
}

func (c *Cache) GetTyped(ctx context.Context, key string, dst any) (bool, error) {
	w, err := c.Get(ctx, key)
	if err != nil || w == nil {
		return false, err
	}
	if err := w.Decode(dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", c.redisKey(key), err)
	}
	return true, nil
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, loader cache.Loader) (*cache.ValueWrapper, error) {
	if loader == nil {
		return nil, cache.ErrNilLoader
	}
	if w, err := c.Get(ctx, key); err != nil || w != nil {
		return w, err
	}

	// Waiters share the result, so one caller going away must not fail it
	// for the others. Each command still gets the operation timeout.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		raw, ok, err := c.lookup(shared, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return raw, nil
		}

		value, err := loader(shared)
		if err != nil {
			return nil, &cache.ValueRetrievalError{Key: key, Err: err}
		}

		raw, err = c.manager.codec.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.redisKey(key), err)
		}
		if err := c.set(shared, key, raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return cache.NewRawValue(v.([]byte), c.manager.codec), nil
}

func (c *Cache) Put(ctx context.Context, key string, value any) error {
	raw, err := c.manager.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.redisKey(key), err)
	}
	return c.set(ctx, key, raw)
}

func (c *Cache) PutIfAbsent(ctx context.Context, key string, value any) (*cache.ValueWrapper, error) {
	raw, err := c.manager.codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.redisKey(key), err)
	}

	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	k := c.redisKey(key)
	stored, err := c.manager.client.SetNX(ctx, k, raw, c.manager.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", k, err)
	}
	if stored {
		return nil, nil
	}

	existing, err := c.manager.client.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get %s: %w", k, err)
	}
	return cache.NewRawValue(existing, c.manager.codec), nil
}

func (c *Cache) Evict(ctx context.Context, key string) error {
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	k := c.redisKey(key)
	if err := c.manager.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("del %s: %w", k, err)
	}
	return nil
}

// Clear deletes every key of this cache, scanning in batches.
func (c *Cache) Clear(ctx context.Context) error {
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	client := c.manager.client
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, c.keyBase+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan %s*: %w", c.keyBase, err)
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del %s*: %w", c.keyBase, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	k := c.redisKey(key)
	if !c.manager.timeToIdle || c.manager.ttl <= 0 {
		raw, err := c.manager.client.Get(ctx, k).Bytes()
		return result(k, raw, err)
	}

	var get *redis.StringCmd
	_, err := c.manager.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		pipe.Expire(ctx, k, c.manager.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("get %s: %w", k, err)
	}
	raw, err := get.Bytes()
	return result(k, raw, err)
}

func (c *Cache) set(ctx context.Context, key string, raw []byte) error {
	ctx, cancel := c.manager.withTimeout(ctx)
	defer cancel()

	k := c.redisKey(key)
	if err := c.manager.client.Set(ctx, k, raw, c.manager.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", k, err)
	}
	return nil
}

func (c *Cache) redisKey(key string) string {
	return c.keyBase + key
}

func result(key string, raw []byte, err error) ([]byte, bool, error) {
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return raw, true, nil
}

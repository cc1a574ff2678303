package cache

import (
	"context"
	"fmt"
)

// Load is the typed read-through helper: it returns the cached value for
// key, computing it with load on miss.
//
//	rate, err := cache.Load(ctx, c, "USD_INR", func(ctx context.Context) (*Rate, error) {
//	    return repo.Find(ctx, "USD", "INR")
//	})
func Load[T any](ctx context.Context, c Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	w, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	if w == nil {
		return zero, nil
	}

	var out T
	if err := w.Decode(&out); err != nil {
		return zero, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return out, nil
}

// GetAs is the typed form of Cache.GetTyped.
func GetAs[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var out T
	found, err := c.GetTyped(ctx, key, &out)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return out, true, nil
}

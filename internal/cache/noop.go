package cache

import "context"

// NoOpManager hands out caches that store nothing. It stands in for a real
// store when caching is disabled, so read-through lookups always run the
// loader.
type NoOpManager struct{}

var _ Manager = NoOpManager{}

func NewNoOpManager() NoOpManager {
	return NoOpManager{}
}

func (NoOpManager) GetCache(name string) (Cache, bool) {
	return noOpCache{name: name}, true
}

func (NoOpManager) CacheNames(context.Context) ([]string, error) {
	return []string{}, nil
}

type noOpCache struct {
	name string
}

func (c noOpCache) Name() string { return c.name }

func (noOpCache) NativeCache() any { return nil }

func (noOpCache) Get(context.Context, string) (*ValueWrapper, error) { return nil, nil }

func (noOpCache) GetTyped(context.Context, string, any) (bool, error) { return false, nil }

func (noOpCache) GetOrLoad(ctx context.Context, key string, loader Loader) (*ValueWrapper, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	value, err := loader(ctx)
	if err != nil {
		return nil, &ValueRetrievalError{Key: key, Err: err}
	}
	return NewValue(value, nil), nil
}

func (noOpCache) Put(context.Context, string, any) error { return nil }

func (noOpCache) PutIfAbsent(context.Context, string, any) (*ValueWrapper, error) { return nil, nil }

func (noOpCache) Evict(context.Context, string) error { return nil }

func (noOpCache) Clear(context.Context) error { return nil }

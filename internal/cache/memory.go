package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MemoryManager is an in-process Manager. Entries expire after the
// configured TTL; with time-to-idle enabled every read pushes the expiry
// out by another TTL.
type MemoryManager struct {
	mu         sync.Mutex
	caches     map[string]*MemoryCache
	static     bool
	ttl        time.Duration
	timeToIdle bool
	codec      Codec
	now        func() time.Time
}

var _ Manager = (*MemoryManager)(nil)

type MemoryOption func(*MemoryManager)

// WithTTL sets the entry lifetime. Zero or negative means entries never expire.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryManager) { m.ttl = ttl }
}

// WithTimeToIdle makes reads refresh the entry expiry.
func WithTimeToIdle(enabled bool) MemoryOption {
	return func(m *MemoryManager) { m.timeToIdle = enabled }
}

// WithCacheNames pre-creates the named caches and disables creation of any
// other name.
func WithCacheNames(names ...string) MemoryOption {
	return func(m *MemoryManager) {
		m.static = true
		for _, name := range names {
			m.caches[name] = m.newCache(name)
		}
	}
}

func WithMemoryCodec(codec Codec) MemoryOption {
	return func(m *MemoryManager) {
		if codec != nil {
			m.codec = codec
		}
	}
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryManager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemoryManager(opts ...MemoryOption) *MemoryManager {
	m := &MemoryManager{
		caches: make(map[string]*MemoryCache),
		codec:  defaultCodec,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryManager) GetCache(name string) (Cache, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[name]; ok {
		return c, true
	}
	if m.static {
		return nil, false
	}

	c := m.newCache(name)
	m.caches[name] = c
	return c, true
}

func (m *MemoryManager) CacheNames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Run removes expired entries every interval until ctx is done.
func (m *MemoryManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PurgeExpired()
		}
	}
}

// PurgeExpired removes expired entries from every cache and returns how
// many were removed.
func (m *MemoryManager) PurgeExpired() int {
	m.mu.Lock()
	caches := make([]*MemoryCache, 0, len(m.caches))
	for _, c := range m.caches {
		caches = append(caches, c)
	}
	m.mu.Unlock()

	removed := 0
	for _, c := range caches {
		removed += c.purgeExpired()
	}
	return removed
}

func (m *MemoryManager) newCache(name string) *MemoryCache {
	return &MemoryCache{
		name:       name,
		entries:    make(map[string]*memoryEntry),
		ttl:        m.ttl,
		timeToIdle: m.timeToIdle,
		codec:      m.codec,
		now:        m.now,
	}
}

// MemoryCache is one named cache of a MemoryManager. Values are stored
// encoded, so callers never share memory with the cache.
type MemoryCache struct {
	name       string
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	ttl        time.Duration
	timeToIdle bool
	codec      Codec
	now        func() time.Time
	group      singleflight.Group
}

var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

func (c *MemoryCache) Name() string {
	return c.name
}

func (c *MemoryCache) NativeCache() any {
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (*ValueWrapper, error) {
	raw, ok := c.lookup(key)
	if !ok {
		return nil, nil
	}
	return NewRawValue(raw, c.codec), nil
}

func (c *MemoryCache) GetTyped(ctx context.Context, key string, dst any) (bool, error) {
	w, err := c.Get(ctx, key)
	if err != nil || w == nil {
		return false, err
	}
	if err := w.Decode(dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryCache) GetOrLoad(ctx context.Context, key string, loader Loader) (*ValueWrapper, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	if raw, ok := c.lookup(key); ok {
		return NewRawValue(raw, c.codec), nil
	}

	// Waiters share the result, so the loader runs detached from the
	// caller that happened to start it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if raw, ok := c.lookup(key); ok {
			return raw, nil
		}

		value, err := loader(shared)
		if err != nil {
			return nil, &ValueRetrievalError{Key: key, Err: err}
		}

		raw, err := c.codec.Marshal(value)
		if err != nil {
			return nil, err
		}
		c.store(key, raw)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return NewRawValue(v.([]byte), c.codec), nil
}

func (c *MemoryCache) Put(_ context.Context, key string, value any) error {
	raw, err := c.codec.Marshal(value)
	if err != nil {
		return err
	}
	c.store(key, raw)
	return nil
}

func (c *MemoryCache) PutIfAbsent(_ context.Context, key string, value any) (*ValueWrapper, error) {
	raw, err := c.codec.Marshal(value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok && !e.expired(now) {
		return NewRawValue(e.raw, c.codec), nil
	}
	c.entries[key] = &memoryEntry{raw: raw, expiresAt: c.expiry(now)}
	return nil, nil
}

func (c *MemoryCache) Evict(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	now := c.now()
	if e.expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	if c.timeToIdle {
		e.expiresAt = c.expiry(now)
	}
	return e.raw, true
}

func (c *MemoryCache) store(key string, raw []byte) {
	c.mu.Lock()
	c.entries[key] = &memoryEntry{raw: raw, expiresAt: c.expiry(c.now())}
	c.mu.Unlock()
}

func (c *MemoryCache) expiry(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(c.ttl)
}

func (c *MemoryCache) purgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

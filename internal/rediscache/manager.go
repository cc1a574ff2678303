package rediscache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

const (
	DefaultPrefix = "my-redis-"
	DefaultTTL    = 60 * time.Second

	keySeparator = "::"
	scanCount    = 100
)

// Manager hands out Redis-backed caches sharing one client.
type Manager struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	timeToIdle bool
	opTimeout  time.Duration
	codec      cache.Codec

	mu     sync.Mutex
	caches map[string]*Cache
	static bool
}

var _ cache.Manager = (*Manager)(nil)

type Option func(*Manager)

func WithPrefix(prefix string) Option {
	return func(m *Manager) { m.prefix = prefix }
}

// WithTTL sets the entry lifetime. Zero means entries never expire.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithTimeToIdle(enabled bool) Option {
	return func(m *Manager) { m.timeToIdle = enabled }
}

// WithOperationTimeout bounds every Redis round trip made by the caches.
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) { m.opTimeout = d }
}

func WithCodec(codec cache.Codec) Option {
	return func(m *Manager) {
		if codec != nil {
			m.codec = codec
		}
	}
}

// WithCacheNames pre-creates the named caches and refuses any other name.
func WithCacheNames(names ...string) Option {
	return func(m *Manager) {
		m.static = true
		for _, name := range names {
			m.caches[name] = m.newCache(name)
		}
	}
}

// NewManager returns a Manager using client. Defaults: prefix "my-redis-",
// 60s TTL, time-to-idle on.
func NewManager(client redis.UniversalClient, opts ...Option) *Manager {
	m := &Manager{
		client:     client,
		prefix:     DefaultPrefix,
		ttl:        DefaultTTL,
		timeToIdle: true,
		codec:      cache.JSONCodec{},
		caches:     make(map[string]*Cache),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewClient builds a go-redis client whose dial, read and write timeouts are
// all set to timeout, so an unreachable server fails fast.
func NewClient(addr, password string, db int, timeout time.Duration) *redis.Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	return redis.NewClient(opts)
}

func (m *Manager) GetCache(name string) (cache.Cache, bool) {
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

// CacheNames returns the names of caches created through this manager
// together with any cache that has keys under the prefix in Redis.
func (m *Manager) CacheNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	m.mu.Lock()
	for name := range m.caches {
		seen[name] = struct{}{}
	}
	m.mu.Unlock()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	iter := m.client.Scan(ctx, 0, m.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		if name, ok := m.cacheNameOf(iter.Val()); ok {
			seen[name] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache names: %w", err)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks that Redis answers.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Ping(ctx).Err()
}

// Client exposes the underlying go-redis client.
func (m *Manager) Client() redis.UniversalClient {
	return m.client
}

func (m *Manager) newCache(name string) *Cache {
	return &Cache{
		name:    name,
		manager: m,
		keyBase: m.prefix + name + keySeparator,
	}
}

func (m *Manager) cacheNameOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, m.prefix)
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, keySeparator)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/angeloszaimis/currency-exchange/internal/circuitbreaker"
)

// ResilientCache decorates a Cache so that store failures never reach the
// caller. Reads degrade to misses, writes and evictions become no-ops, and
// read-through lookups fall back to the loader. Every call is gated by a
// breaker shared with the other caches of the same ResilientManager.
type ResilientCache struct {
	delegate Cache
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger
	observer Observer
	codec    Codec
	clock    circuitbreaker.Clock
}

var _ Cache = (*ResilientCache)(nil)

func newResilientCache(delegate Cache, m *ResilientManager) *ResilientCache {
	return &ResilientCache{
		delegate: delegate,
		breaker:  m.breaker,
		logger:   m.logger,
		observer: m.observer,
		codec:    m.codec,
		clock:    m.clock,
	}
}

func (c *ResilientCache) Name() string {
	return c.delegate.Name()
}

func (c *ResilientCache) NativeCache() any {
	return c.delegate.NativeCache()
}

func (c *ResilientCache) Get(ctx context.Context, key string) (*ValueWrapper, error) {
	var result *ValueWrapper
	ok := c.attempt(ctx, OpGet, key, func() (err error) {
		result, err = c.delegate.Get(ctx, key)
		return err
	})
	if !ok {
		return nil, nil
	}

	c.lookup(OpGet, key, result != nil)
	return result, nil
}

func (c *ResilientCache) GetTyped(ctx context.Context, key string, dst any) (bool, error) {
	var found bool
	ok := c.attempt(ctx, OpGetTyped, key, func() (err error) {
		found, err = c.delegate.GetTyped(ctx, key, dst)
		return err
	})
	if !ok {
		return false, nil
	}

	c.lookup(OpGetTyped, key, found)
	return found, nil
}

// GetOrLoad consults the store when the breaker allows it and falls back to
// calling loader directly otherwise. A value computed on the fallback path
// is returned without being written to the store. If the store already ran
// loader before failing, that value is returned instead of loading again.
func (c *ResilientCache) GetOrLoad(ctx context.Context, key string, loader Loader) (*ValueWrapper, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}

	if !c.breaker.Allow() {
		c.emit(EventRejected, OpGetOrLoad, key, nil)
		return c.load(ctx, key, loader)
	}

	var (
		invoked bool
		loaded  bool
		value   any
	)
	result, err := c.delegate.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		invoked = true
		v, err := loader(ctx)
		if err == nil {
			loaded, value = true, v
		}
		return v, err
	})
	if err != nil {
		var vre *ValueRetrievalError
		if errors.As(err, &vre) {
			// The store answered; only the loader failed.
			c.reportSuccess()
			return nil, err
		}

		if ctx.Err() != nil {
			c.reportCanceled(OpGetOrLoad, key, err)
		} else {
			c.reportFailure(OpGetOrLoad, key, err)
		}
		if loaded {
			c.emit(EventFallback, OpGetOrLoad, key, nil)
			return NewValue(value, c.codec), nil
		}
		return c.load(ctx, key, loader)
	}

	c.reportSuccess()
	c.lookup(OpGetOrLoad, key, !invoked)
	return result, nil
}

func (c *ResilientCache) Put(ctx context.Context, key string, value any) error {
	c.attempt(ctx, OpPut, key, func() error {
		return c.delegate.Put(ctx, key, value)
	})
	return nil
}

func (c *ResilientCache) PutIfAbsent(ctx context.Context, key string, value any) (*ValueWrapper, error) {
	var existing *ValueWrapper
	ok := c.attempt(ctx, OpPutIfAbsent, key, func() (err error) {
		existing, err = c.delegate.PutIfAbsent(ctx, key, value)
		return err
	})
	if !ok {
		return nil, nil
	}
	return existing, nil
}

func (c *ResilientCache) Evict(ctx context.Context, key string) error {
	c.attempt(ctx, OpEvict, key, func() error {
		return c.delegate.Evict(ctx, key)
	})
	return nil
}

func (c *ResilientCache) Clear(ctx context.Context) error {
	c.attempt(ctx, OpClear, "", func() error {
		return c.delegate.Clear(ctx)
	})
	return nil
}

// attempt runs fn if the breaker allows it and reports the outcome. It
// returns true only when fn ran and succeeded. Errors seen after ctx itself
// ended are the caller's doing and leave the breaker untouched.
func (c *ResilientCache) attempt(ctx context.Context, op Op, key string, fn func() error) bool {
	if !c.breaker.Allow() {
		c.emit(EventRejected, op, key, nil)
		return false
	}

	if err := fn(); err != nil {
		if ctx.Err() != nil {
			c.reportCanceled(op, key, err)
			return false
		}
		c.reportFailure(op, key, err)
		return false
	}

	c.reportSuccess()
	return true
}

func (c *ResilientCache) load(ctx context.Context, key string, loader Loader) (*ValueWrapper, error) {
	c.emit(EventFallback, OpGetOrLoad, key, nil)

	value, err := loader(ctx)
	if err != nil {
		return nil, &ValueRetrievalError{Key: key, Err: err}
	}
	return NewValue(value, c.codec), nil
}

func (c *ResilientCache) reportFailure(op Op, key string, err error) {
	c.logger.Warn("Cache operation failed, falling back",
		slog.String("cache", c.delegate.Name()),
		slog.String("op", string(op)),
		slog.String("key", key),
		slog.String("error", err.Error()))
	c.emit(EventFailure, op, key, err)

	if c.breaker.RecordFailure() {
		c.logger.Warn("Cache circuit opened",
			slog.Duration("retry_interval", c.breaker.RetryInterval()))
		c.emit(EventCircuitOpened, op, key, err)
	}
}

func (c *ResilientCache) reportCanceled(op Op, key string, err error) {
	c.logger.Debug("Cache operation abandoned by caller",
		slog.String("cache", c.delegate.Name()),
		slog.String("op", string(op)),
		slog.String("key", key),
		slog.String("error", err.Error()))
	c.emit(EventCanceled, op, key, err)
}

func (c *ResilientCache) reportSuccess() {
	if c.breaker.RecordSuccess() {
		c.logger.Info("Cache circuit closed", slog.String("cache", c.delegate.Name()))
		c.emit(EventCircuitClosed, "", "", nil)
	}
}

func (c *ResilientCache) lookup(op Op, key string, hit bool) {
	if hit {
		c.emit(EventHit, op, key, nil)
		return
	}
	c.emit(EventMiss, op, key, nil)
}

func (c *ResilientCache) emit(kind EventKind, op Op, key string, err error) {
	c.observer.Observe(Event{
		Kind:      kind,
		Cache:     c.delegate.Name(),
		Op:        op,
		Key:       key,
		Err:       err,
		Timestamp: c.clock(),
	})
}

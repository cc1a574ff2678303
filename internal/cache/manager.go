package cache

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/angeloszaimis/currency-exchange/internal/circuitbreaker"
)

// ResilientManager wraps every cache obtained from its delegate in a
// ResilientCache. All of them share one breaker, so a failure seen through
// any cache name gates every other one.
type ResilientManager struct {
	delegate Manager
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger
	observer Observer
	codec    Codec
	clock    circuitbreaker.Clock
}

var _ Manager = (*ResilientManager)(nil)

type Option func(*managerOptions)

type managerOptions struct {
	retryInterval time.Duration
	clock         circuitbreaker.Clock
	logger        *slog.Logger
	observer      Observer
	codec         Codec
}

// WithRetryInterval sets how long the shared circuit stays open after a
// failure. Defaults to circuitbreaker.DefaultRetryInterval.
func WithRetryInterval(d time.Duration) Option {
	return func(o *managerOptions) { o.retryInterval = d }
}

func WithClock(clock circuitbreaker.Clock) Option {
	return func(o *managerOptions) { o.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) { o.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(o *managerOptions) { o.observer = observer }
}

// WithCodec sets the codec used to decode values produced on the fallback
// path. It should match the delegate's codec.
func WithCodec(codec Codec) Option {
	return func(o *managerOptions) { o.codec = codec }
}

func NewResilientManager(delegate Manager, opts ...Option) *ResilientManager {
	o := managerOptions{
		retryInterval: circuitbreaker.DefaultRetryInterval,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	return &ResilientManager{
		delegate: delegate,
		breaker:  circuitbreaker.New(o.retryInterval, circuitbreaker.WithClock(o.clock)),
		logger:   o.logger,
		observer: o.observer,
		codec:    o.codec,
		clock:    o.clock,
	}
}

// GetCache returns the delegate's cache wrapped in a ResilientCache, or
// false when the delegate has no cache of that name.
func (m *ResilientManager) GetCache(name string) (Cache, bool) {
	c, ok := m.delegate.GetCache(name)
	if !ok || c == nil {
		return nil, false
	}
	return newResilientCache(c, m), true
}

// CacheNames never fails: when the delegate cannot list its caches the
// manager reports none.
func (m *ResilientManager) CacheNames(ctx context.Context) ([]string, error) {
	names, err := m.delegate.CacheNames(ctx)
	if err != nil {
		m.logger.Warn("Cache discovery failed, reporting no caches",
			slog.String("error", err.Error()))
		return []string{}, nil
	}
	if names == nil {
		return []string{}, nil
	}
	return names, nil
}

// Breaker exposes the shared circuit state for health and metrics reporting.
func (m *ResilientManager) Breaker() *circuitbreaker.Breaker {
	return m.breaker
}

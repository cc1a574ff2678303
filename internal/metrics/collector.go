package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

type EventType string

const (
	EventCache            EventType = "cache"
	EventRequestCompleted EventType = "request_completed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Cache      cache.Event
	Route      string
	Duration   time.Duration
	StatusCode int
}

// Recorder receives every event the collector processes.
type Recorder interface {
	Record(ctx context.Context, event MetricEvent)
}

type Collector struct {
	eventCh   chan MetricEvent
	metrics   *Metrics
	logger    *slog.Logger
	recorders []Recorder
	dropped   atomic.Int64
	done      chan struct{}
}

var _ cache.Observer = (*Collector)(nil)

type CollectorOption func(*Collector)

func WithRecorder(r Recorder) CollectorOption {
	return func(c *Collector) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

func NewCollector(bufferSize int, logger *slog.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Observe forwards a cache event without blocking the cache call.
func (c *Collector) Observe(e cache.Event) {
	c.emit(MetricEvent{Type: EventCache, Timestamp: e.Timestamp, Cache: e})
}

// RecordRequest forwards a completed request without blocking the handler.
func (c *Collector) RecordRequest(route string, d time.Duration, statusCode int) {
	c.emit(MetricEvent{
		Type:       EventRequestCompleted,
		Timestamp:  time.Now(),
		Route:      route,
		Duration:   d,
		StatusCode: statusCode,
	})
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

// Done is closed once the collector has drained and stopped.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
	}
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")
	defer close(c.done)

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(ctx, event)
		case <-ctx.Done():
			c.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

func (c *Collector) processEvent(ctx context.Context, event MetricEvent) {
	switch event.Type {
	case EventCache:
		c.metrics.RecordCacheEvent(event.Cache)

	case EventRequestCompleted:
		c.metrics.RecordResponse(event.Route, event.Duration, event.StatusCode)
	}

	for _, r := range c.recorders {
		r.Record(ctx, event)
	}
}

func (c *Collector) drain(ctx context.Context) {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(ctx, event)
		default:
			return
		}
	}
}

// Snapshot returns the current metrics. circuit is the breaker state to
// report alongside them.
func (c *Collector) Snapshot(circuit string) Snapshot {
	snap := c.metrics.Snapshot(circuit)
	snap.DroppedEvents = c.dropped.Load()
	return snap
}

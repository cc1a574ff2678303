// Package metrics collects cache and request metrics for the service.
//
// It uses a channel-based event pipeline fed from two places:
//   - the resilient cache, through Collector.Observe (a cache.Observer)
//   - the HTTP layer, through Collector.RecordRequest
//
// The collector runs in a dedicated goroutine. Producers never block: when
// the buffer is full the event is dropped and counted.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	manager := cache.NewResilientManager(store, cache.WithObserver(collector))
//	collector.RecordRequest("GET /currency-exchange", 12*time.Millisecond, 200)
//
//	snapshot := collector.Snapshot(manager.Breaker().State().String())
//
// Every processed event is also handed to the configured Recorders. The
// Prometheus recorder re-exports them as OpenTelemetry instruments.
package metrics

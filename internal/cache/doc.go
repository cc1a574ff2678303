// Package cache defines the named key-value cache abstraction the service
// reads through, and the resilient layer that keeps cache outages away from
// callers.
//
// A Manager hands out named Cache values. Stores (MemoryManager, the Redis
// store in package rediscache, NoOpManager) implement both interfaces and
// may fail on any call. NewResilientManager wraps a store so that:
//
//   - reads that fail or are gated by the circuit return a miss
//   - writes, evictions and clears that fail or are gated are dropped
//   - GetOrLoad falls back to the loader and does not write its result back
//   - a loader failure surfaces as *ValueRetrievalError
//   - listing cache names degrades to an empty list
//
// All caches of one ResilientManager share a single circuitbreaker.Breaker.
//
// Example:
//
//	mgr := cache.NewResilientManager(rediscache.NewManager(client),
//	    cache.WithRetryInterval(5*time.Second),
//	    cache.WithLogger(log))
//	c, _ := mgr.GetCache("exchangeValue")
//	rate, err := cache.Load(ctx, c, "USD_INR", loadFromDB)
package cache

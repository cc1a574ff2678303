// Package circuitbreaker implements the lightweight breaker that gates calls
// to the cache backend.
//
// The breaker has no failure threshold and no half-open bookkeeping. One
// failure opens it; once the retry interval has elapsed every caller is let
// through as a trial, and the first success closes it again:
//
//   - CLOSED: calls pass through
//   - OPEN: calls are skipped until the retry interval elapses
//   - HALF-OPEN: open, but the retry interval has elapsed, so calls pass
//
// Usage:
//
//	cb := circuitbreaker.New(5 * time.Second)
//	if cb.Allow() {
//	    if err := call(); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
//
// The open flag and the failure timestamp are separate atomics. Races
// between concurrent callers are tolerated; the breaker is approximate by
// construction and never blocks.
package circuitbreaker

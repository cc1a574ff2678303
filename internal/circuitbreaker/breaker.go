package circuitbreaker

import (
	"sync/atomic"
	"time"
)

// DefaultRetryInterval is how long an open circuit waits before letting a
// trial request through.
const DefaultRetryInterval = 5 * time.Second

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Open, but the retry interval has elapsed
)

// Clock returns the current time. Tests replace it to move time forward
// without sleeping.
type Clock func() time.Time

// Breaker is an approximate circuit breaker built from two independent
// atomic cells: the open flag and the time of the last failure. The cells
// are never updated together, so concurrent callers may race into the same
// trial attempt and a success may race a failure (last writer wins).
type Breaker struct {
	open          atomic.Bool
	lastFailure   atomic.Int64 // unix milliseconds
	retryInterval time.Duration
	now           Clock
}

type Option func(*Breaker)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(b *Breaker) {
		if clock != nil {
			b.now = clock
		}
	}
}

func New(retryInterval time.Duration, opts ...Option) *Breaker {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}

	b := &Breaker{
		retryInterval: retryInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Allow reports whether a call should be attempted. A closed circuit always
// allows; an open one allows once more than the retry interval has passed
// since the last failure.
func (b *Breaker) Allow() bool {
	if !b.open.Load() {
		return true
	}

	elapsed := b.now().UnixMilli() - b.lastFailure.Load()
	return elapsed > b.retryInterval.Milliseconds()
}

// RecordFailure opens the circuit and stamps the failure time.
// It returns true when this call is the one that opened it.
func (b *Breaker) RecordFailure() (opened bool) {
	b.lastFailure.Store(b.now().UnixMilli())
	return !b.open.Swap(true)
}

// RecordSuccess closes the circuit if it was open. The failure timestamp is
// left untouched. It returns true when this call is the one that closed it.
func (b *Breaker) RecordSuccess() (closed bool) {
	if !b.open.Load() {
		return false
	}
	return b.open.CompareAndSwap(true, false)
}

func (b *Breaker) State() State {
	if !b.open.Load() {
		return StateClosed
	}
	if b.Allow() {
		return StateHalfOpen
	}
	return StateOpen
}

// IsOpen reports the raw open flag.
func (b *Breaker) IsOpen() bool {
	return b.open.Load()
}

// LastFailure returns the time of the most recent failure, or the zero time
// if none has been recorded.
func (b *Breaker) LastFailure() time.Time {
	ms := b.lastFailure.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (b *Breaker) RetryInterval() time.Duration {
	return b.retryInterval
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

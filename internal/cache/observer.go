package cache

import "time"

type EventKind string

const (
	EventHit           EventKind = "hit"
	EventMiss          EventKind = "miss"
	EventFailure       EventKind = "failure"
	EventRejected      EventKind = "rejected"
	EventCanceled      EventKind = "canceled"
	EventFallback      EventKind = "fallback"
	EventCircuitOpened EventKind = "circuit_opened"
	EventCircuitClosed EventKind = "circuit_closed"
)

type Op string

const (
	OpGet         Op = "get"
	OpGetTyped    Op = "get_typed"
	OpGetOrLoad   Op = "get_or_load"
	OpPut         Op = "put"
	OpPutIfAbsent Op = "put_if_absent"
	OpEvict       Op = "evict"
	OpClear       Op = "clear"
)

// Event describes something the resilient layer observed.
type Event struct {
	Kind      EventKind
	Cache     string
	Op        Op
	Key       string
	Err       error
	Timestamp time.Time
}

// Observer receives events from resilient caches. Observe is called on the
// request path and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type noopObserver struct{}

func (noopObserver) Observe(Event) {}

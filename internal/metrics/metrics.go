package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	caches        map[string]*CacheMetrics
	requests      map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	lastFailure   time.Time
	startTime     time.Time
}

type Snapshot struct {
	Uptime        time.Duration           `json:"uptime"`
	Circuit       string                  `json:"circuit"`
	LastFailure   *time.Time              `json:"last_failure,omitempty"`
	TotalRequests int64                   `json:"total_requests"`
	DroppedEvents int64                   `json:"dropped_events"`
	Caches        map[string]CacheMetrics `json:"caches"`
	Routes        map[string]RouteMetrics `json:"routes"`
}

type CacheMetrics struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Failures      int64 `json:"failures"`
	Rejected      int64 `json:"rejected"`
	Canceled      int64 `json:"canceled"`
	Fallbacks     int64 `json:"fallbacks"`
	CircuitOpens  int64 `json:"circuit_opens"`
	CircuitCloses int64 `json:"circuit_closes"`
}

// HitRatio is hits over lookups that reached the store.
func (m CacheMetrics) HitRatio() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

type RouteMetrics struct {
	Requests    int64         `json:"requests"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		caches:        make(map[string]*CacheMetrics),
		requests:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordCacheEvent(e cache.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cm, ok := m.caches[e.Cache]
	if !ok {
		cm = &CacheMetrics{}
		m.caches[e.Cache] = cm
	}

	switch e.Kind {
	case cache.EventHit:
		cm.Hits++
	case cache.EventMiss:
		cm.Misses++
	case cache.EventFailure:
		cm.Failures++
		if e.Timestamp.After(m.lastFailure) {
			m.lastFailure = e.Timestamp
		}
	case cache.EventRejected:
		cm.Rejected++
	case cache.EventCanceled:
		cm.Canceled++
	case cache.EventFallback:
		cm.Fallbacks++
	case cache.EventCircuitOpened:
		cm.CircuitOpens++
	case cache.EventCircuitClosed:
		cm.CircuitCloses++
	}
}

func (m *Metrics) RecordResponse(route string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[route]++
	m.responseTimes[route] = append(m.responseTimes[route], duration)
	if len(m.responseTimes[route]) > maxSamples {
		m.responseTimes[route] = m.responseTimes[route][1:]
	}

	if m.statusCodes[route] == nil {
		m.statusCodes[route] = make(map[int]int64)
	}
	m.statusCodes[route][statusCode]++
}

func (m *Metrics) Snapshot(circuit string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:  time.Since(m.startTime),
		Circuit: circuit,
		Caches:  make(map[string]CacheMetrics, len(m.caches)),
		Routes:  make(map[string]RouteMetrics, len(m.requests)),
	}
	if !m.lastFailure.IsZero() {
		last := m.lastFailure
		snap.LastFailure = &last
	}

	for name, cm := range m.caches {
		snap.Caches[name] = *cm
	}

	for route, n := range m.requests {
		snap.TotalRequests += n

		codes := make(map[int]int64, len(m.statusCodes[route]))
		for code, count := range m.statusCodes[route] {
			codes[code] = count
		}
		rm := RouteMetrics{Requests: n, StatusCodes: codes}

		durations := m.responseTimes[route]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			rm.AvgResponse = average(sorted)
			rm.P50Response = percentile(sorted, 0.50)
			rm.P95Response = percentile(sorted, 0.95)
			rm.P99Response = percentile(sorted, 0.99)
		}

		snap.Routes[route] = rm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

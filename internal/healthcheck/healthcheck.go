package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultTimeout = 2 * time.Second

// Probe checks one dependency.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type component struct {
	probe Probe

	mu        sync.RWMutex
	healthy   bool
	lastError string
	checkedAt time.Time
}

// setHealthy records a probe result and reports whether health flipped.
func (c *component) setHealthy(healthy bool, err error, at time.Time) (changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed = c.healthy != healthy
	c.healthy = healthy
	c.checkedAt = at
	c.lastError = ""
	if err != nil {
		c.lastError = err.Error()
	}
	return changed
}

func (c *component) status() ComponentStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := ComponentStatus{
		Status:   StatusUp,
		Critical: c.probe.Critical,
		Error:    c.lastError,
	}
	if !c.healthy {
		s.Status = StatusDown
	}
	if !c.checkedAt.IsZero() {
		at := c.checkedAt
		s.CheckedAt = &at
	}
	return s
}

// Monitor runs its probes on a fixed interval.
type Monitor struct {
	components []*component
	interval   time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

func NewMonitor(interval time.Duration, logger *slog.Logger, probes ...Probe) *Monitor {
	m := &Monitor{
		interval: interval,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, p := range probes {
		m.components = append(m.components, &component{probe: p, healthy: true})
	}
	return m
}

// Run checks every probe immediately and then once per interval, one
// goroutine per probe, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range m.components {
		wg.Add(1)
		go func(c *component) {
			defer wg.Done()
			m.watch(ctx, c)
		}(c)
	}
	wg.Wait()
}

// CheckNow runs every probe once and waits for the results.
func (m *Monitor) CheckNow(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range m.components {
		wg.Add(1)
		go func(c *component) {
			defer wg.Done()
			m.check(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (m *Monitor) watch(ctx context.Context, c *component) {
	m.check(ctx, c)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health check stopped",
				slog.String("component", c.probe.Name))
			return

		case <-ticker.C:
			m.check(ctx, c)
		}
	}
}

func (m *Monitor) check(ctx context.Context, c *component) {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := c.probe.Check(checkCtx)
	if ctx.Err() != nil {
		return
	}

	healthy := err == nil
	if !c.setHealthy(healthy, err, time.Now()) {
		return
	}

	if healthy {
		m.logger.Info("Component is back up",
			slog.String("component", c.probe.Name))
	} else {
		m.logger.Warn("Component is down",
			slog.String("component", c.probe.Name),
			slog.Bool("critical", c.probe.Critical),
			slog.String("error", err.Error()))
	}
}

// Report returns the combined status of all probes.
func (m *Monitor) Report() Report {
	r := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentStatus, len(m.components)),
	}

	for _, c := range m.components {
		s := c.status()
		r.Components[c.probe.Name] = s

		if s.Status == StatusUp {
			continue
		}
		if c.probe.Critical {
			r.Status = StatusDown
		} else if r.Status == StatusUp {
			r.Status = StatusDegraded
		}
	}
	return r
}

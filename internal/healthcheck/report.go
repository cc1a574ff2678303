package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

type Status string

const (
	StatusUp       Status = "UP"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
)

type ComponentStatus struct {
	Status    Status     `json:"status"`
	Critical  bool       `json:"critical"`
	Error     string     `json:"error,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

// Handler serves the report as JSON, with 503 while DOWN.
func (m *Monitor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Report()

		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

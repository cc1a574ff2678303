package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the JSON snapshot. circuit is called per request for the
// current breaker state.
func (c *Collector) Handler(circuit func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := ""
		if circuit != nil {
			state = circuit()
		}
		snap := c.Snapshot(state)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

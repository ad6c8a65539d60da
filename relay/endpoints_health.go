package relay

import (
	"encoding/json"
	"net/http"
)

type healthcheckRep struct {
	IsHealthy bool `json:"is_healthy"`
}

// healthcheck serves the liveness and readiness probes. A live relay is always healthy until it
// shuts down. A ready relay must also reach its upstream and, if configured, be authenticated.
func (r *Relay) healthcheck(ready bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		healthy := !r.isClosed()
		if healthy && ready {
			healthy = r.isReady()
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, healthcheckRep{IsHealthy: healthy})
	}
}

func (r *Relay) isReady() bool {
	if r.config.Auth.ReadyRequiresAuth && !r.upstream.IsAuthenticated() {
		return false
	}
	return !r.upstream.IsNetworkOutage()
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

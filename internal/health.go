package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// MARK: NewHealthChecker

// Creates a new health checker with alive status set to true by default.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, alive: 1}
}

// MARK: SetReady

// Updates the readiness status of the service.
func (hc *HealthChecker) SetReady(ready bool) {
	atomic.StoreInt64(&hc.ready, boolToInt64(ready))
}

// MARK: SetAlive

// Updates the liveness status of the service.
func (hc *HealthChecker) SetAlive(alive bool) {
	atomic.StoreInt64(&hc.alive, boolToInt64(alive))
}

// MARK: IsReady
func (hc *HealthChecker) IsReady() bool {
	return atomic.LoadInt64(&hc.ready) == 1
}

// MARK: LivenessHandler

// HTTP handler for liveness probes.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt64(&hc.alive) == 1 {
		hc.writeStatus(w, http.StatusOK, "alive")
		return
	}
	hc.writeStatus(w, http.StatusServiceUnavailable, "dead")
}

// MARK: ReadinessHandler

// HTTP handler for readiness probes.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if hc.IsReady() {
		hc.writeStatus(w, http.StatusOK, "ready")
		return
	}
	hc.writeStatus(w, http.StatusServiceUnavailable, "not ready")
}

// MARK: writeStatus
func (hc *HealthChecker) writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   hc.version,
	})
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

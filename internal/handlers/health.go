package handlers

import (
	"net/http"
	"runtime"
	"time"

	"gallery/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Session summary
	Session       string `json:"session"`
	Folder        string `json:"folder,omitempty"`
	Loaded        int    `json:"loaded"`
	Total         int    `json:"total"`
	StreamClients int    `json:"streamClients"`

	// Memory backpressure, present when a monitor is attached
	MemoryPaused bool    `json:"memoryPaused"`
	MemoryAlloc  int64   `json:"memoryAlloc,omitempty"`
	MemoryLimit  int64   `json:"memoryLimit,omitempty"`
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

func (h *Handlers) ready() bool {
	return h.session != nil && h.hub != nil
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusStarting,
		Ready:        h.ready(),
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if response.Ready {
		response.Status = statusHealthy
		snap := h.session.Snapshot()
		response.Session = snap.Status.String()
		response.Folder = snap.Folder
		response.Loaded = snap.LoadedCount
		response.Total = snap.TotalCount
		response.StreamClients = h.hub.Clients()
	}

	if h.memory != nil {
		response.MemoryPaused = h.memory.IsPaused()
		response.MemoryAlloc, response.MemoryLimit, response.MemoryUsage = h.memory.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, "ready")
		return
	}
	writeJSONError(w, "not_ready", http.StatusServiceUnavailable)
}

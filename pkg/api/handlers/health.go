package handlers

import (
	"net/http"
)

// ConnectorSource exposes the statistics of the connectors currently
// serving traffic.
type ConnectorSource interface {
	Names() []string
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is at least one connector serving?
type HealthHandler struct {
	connectors ConnectorSource
}

// NewHealthHandler creates a new health handler.
//
// connectors may be nil, in which case the readiness probe reports
// unhealthy.
func NewHealthHandler(connectors ConnectorSource) *HealthHandler {
	return &HealthHandler{connectors: connectors}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "hostkit",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once at least one HTTP connector is active, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.connectors == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized"))
		return
	}

	names := h.connectors.Names()
	if len(names) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no active connectors"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"connectors": names,
	}))
}

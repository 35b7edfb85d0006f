package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/hostkit/pkg/metrics"
)

// StatisticsSource is the connector statistics registry.
type StatisticsSource interface {
	ConnectorSource
	Get(name string) (metrics.ConnectorStatistics, bool)
	Snapshots() []metrics.Snapshot
}

// ConnectorHandler exposes connector statistics.
type ConnectorHandler struct {
	stats StatisticsSource
}

// NewConnectorHandler creates a new ConnectorHandler.
func NewConnectorHandler(stats StatisticsSource) *ConnectorHandler {
	return &ConnectorHandler{stats: stats}
}

// ConnectorResponse is one connector's statistics as served by the API.
type ConnectorResponse struct {
	metrics.Snapshot
	MeanTimeMs float64 `json:"mean_time_ms"`
}

func toResponse(s metrics.Snapshot) ConnectorResponse {
	return ConnectorResponse{Snapshot: s, MeanTimeMs: float64(s.MeanTime().Microseconds()) / 1000}
}

// List handles GET /connectors.
func (h *ConnectorHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.stats.Snapshots()
	out := make([]ConnectorResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toResponse(s))
	}
	WriteJSONOK(w, out)
}

// Get handles GET /connectors/{name}.
func (h *ConnectorHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s, ok := h.stats.Get(name)
	if !ok {
		NotFound(w, "Connector not active")
		return
	}

	WriteJSONOK(w, toResponse(s.Snapshot()))
}

package api

import (
	"net/http"
	"strings"

	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotProvider exposes the latest reading.
type SnapshotProvider interface {
	Snapshot() (types.Snapshot, bool)
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	deps    SnapshotProvider
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps SnapshotProvider) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status          string `json:"status"`
	HasReading      bool   `json:"has_reading"`
	Established     bool   `json:"baseline_established"`
	LastSampleError string `json:"last_sample_error,omitempty"`
}

// HandleMetrics serves the Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleHealth handles GET /healthz requests.
// If the Accept header contains "application/openmetrics-text" or "text/plain",
// it returns Prometheus metrics. Otherwise, it returns JSON health status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain") {
		h.metrics.ServeHTTP(w, r)
		return
	}

	snap, ok := h.deps.Snapshot()
	resp := healthResponse{Status: "ok", HasReading: ok}
	switch {
	case !ok:
		resp.Status = "starting"
	case snap.LastSampleError != "":
		resp.Status = "degraded"
		resp.LastSampleError = snap.LastSampleError
	}
	resp.Established = ok && snap.Baseline.Established
	writeJSON(w, http.StatusOK, resp)
}

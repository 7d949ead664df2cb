package api

import (
	"net/http"
)

// ReadingHandler serves the latest snapshot.
type ReadingHandler struct {
	deps SnapshotProvider
}

// NewReadingHandler creates a new reading handler.
func NewReadingHandler(deps SnapshotProvider) *ReadingHandler {
	return &ReadingHandler{deps: deps}
}

// HandleGetReading handles GET /reading requests.
func (h *ReadingHandler) HandleGetReading(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_reading"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	snap, ok := h.deps.Snapshot()
	if !ok {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "no_reading", NewKind(op, ErrNoReading))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

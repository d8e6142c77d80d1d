package handlers

import (
	"net/http"

	"research-backend/internal/vectorstore"
)

// StatusHandler reports readiness and the number of indexed chunks.
type StatusHandler struct {
	index *vectorstore.Index
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(index *vectorstore.Index) *StatusHandler {
	return &StatusHandler{index: index}
}

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	Ready   bool `json:"ready"`
	Indexed int  `json:"indexed"`
}

// ServeHTTP handles GET /status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, StatusResponse{
		Ready:   true,
		Indexed: h.index.Len(),
	})
}

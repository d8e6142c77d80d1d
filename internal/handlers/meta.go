package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

// MetaResponse is the payload of GET /meta.
type MetaResponse struct {
	Total int                  `json:"total"`
	Items []vectorstore.Record `json:"items"`
}

// MetaHandler lists the most recently indexed chunks.
type MetaHandler struct {
	index *vectorstore.Index
}

// NewMetaHandler creates a new MetaHandler.
func NewMetaHandler(index *vectorstore.Index) *MetaHandler {
	return &MetaHandler{index: index}
}

// ServeHTTP handles GET /meta?n=20. Items are newest first.
func (h *MetaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := listSize(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid request")
		return
	}

	writeJSON(ctx, w, http.StatusOK, MetaResponse{
		Total: h.index.Len(),
		Items: h.index.Recent(n),
	})
}

// BatchesResponse is the payload of GET /batches.
type BatchesResponse struct {
	Batches []*storage.Batch `json:"batches"`
}

// BatchesHandler lists recorded ingestion batches.
type BatchesHandler struct {
	store storage.BatchStore
}

// NewBatchesHandler creates a new BatchesHandler.
func NewBatchesHandler(store storage.BatchStore) *BatchesHandler {
	return &BatchesHandler{store: store}
}

// ServeHTTP handles GET /batches?n=20. Batches are newest first.
func (h *BatchesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := listSize(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid request")
		return
	}

	batches, err := h.store.ListRecent(ctx, n)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list batches")
		return
	}
	if batches == nil {
		batches = []*storage.Batch{}
	}
	writeJSON(ctx, w, http.StatusOK, BatchesResponse{Batches: batches})
}

// BatchHandler returns one recorded batch.
type BatchHandler struct {
	store storage.BatchStore
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(store storage.BatchStore) *BatchHandler {
	return &BatchHandler{store: store}
}

// ServeHTTP handles GET /batches/{batchId}.
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batch, err := h.store.Get(ctx, chi.URLParam(r, "batchId"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to get batch")
		return
	}
	writeJSON(ctx, w, http.StatusOK, batch)
}

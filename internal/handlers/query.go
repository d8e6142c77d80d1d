package handlers

import (
	"net/http"

	"research-backend/internal/rag"
	"research-backend/internal/vectorstore"
)

// QueryRequest is the body of POST /query. A missing or non-positive top_k
// means rag.DefaultTopK.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k"`
}

// QueryResponse holds the matching chunks, best first, each with a score.
type QueryResponse struct {
	Answers []vectorstore.Record `json:"answers"`
}

// QueryHandler handles similarity queries.
type QueryHandler struct {
	engine rag.Engine
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(engine rag.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// ServeHTTP handles POST /query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(ctx, w, err, "Invalid request")
		return
	}

	answers, err := h.engine.Query(ctx, req.Query, req.TopK)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to run query")
		return
	}
	writeJSON(ctx, w, http.StatusOK, QueryResponse{Answers: answers})
}

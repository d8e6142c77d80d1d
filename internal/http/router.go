package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"research-backend/internal/handlers"
	"research-backend/internal/notify"
	"research-backend/internal/rag"
	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Index       *vectorstore.Index
	Ingester    handlers.Ingester
	Engine      rag.Engine
	Hub         *notify.Hub
	Batches     storage.BatchStore // nil disables /batches
	MaxUploadMB int64
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Method(http.MethodGet, "/status", handlers.NewStatusHandler(deps.Index))
	r.Method(http.MethodPost, "/ingest", handlers.NewIngestHandler(deps.Ingester, deps.MaxUploadMB))
	r.Method(http.MethodPost, "/ingest/urls", handlers.NewIngestURLsHandler(deps.Ingester))
	r.Method(http.MethodPost, "/query", handlers.NewQueryHandler(deps.Engine))
	r.Method(http.MethodGet, "/meta", handlers.NewMetaHandler(deps.Index))
	if deps.Batches != nil {
		r.Method(http.MethodGet, "/batches", handlers.NewBatchesHandler(deps.Batches))
		r.Method(http.MethodGet, "/batches/{batchId}", handlers.NewBatchHandler(deps.Batches))
	}
	r.Method(http.MethodGet, "/ws/{clientId}", handlers.NewWSHandler(deps.Hub))

	return r
}

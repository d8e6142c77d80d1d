package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"research-backend/internal/contextutil"
	"research-backend/internal/indexer"
)

// ClientIDHeader names the client whose channel receives progress events.
const ClientIDHeader = "X-Client-ID"

// Ingester runs ingestion batches. *indexer.Pipeline implements it.
type Ingester interface {
	IngestFiles(ctx context.Context, clientID string, files []indexer.FileItem) (int, error)
	IngestURLs(ctx context.Context, clientID string, urls []string) (int, error)
}

// IngestResponse is returned by both ingestion endpoints.
type IngestResponse struct {
	Status string `json:"status"`
	Added  int    `json:"added"`
}

// IngestHandler handles multipart file uploads.
type IngestHandler struct {
	ingester       Ingester
	maxUploadBytes int64
}

// NewIngestHandler creates a new IngestHandler. Request bodies larger than
// maxUploadMB megabytes are rejected.
func NewIngestHandler(ingester Ingester, maxUploadMB int64) *IngestHandler {
	return &IngestHandler{
		ingester:       ingester,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// ServeHTTP handles POST /ingest with a multipart "files" field.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		logger.WarnContext(ctx, "invalid multipart body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required in field 'files'")
		return
	}

	files := make([]indexer.FileItem, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			handleServiceError(ctx, w, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err), "Failed to read upload")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			handleServiceError(ctx, w, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err), "Failed to read upload")
			return
		}
		files = append(files, indexer.FileItem{Name: fh.Filename, Data: data})
	}

	clientID := r.Header.Get(ClientIDHeader)
	logger.InfoContext(ctx, "ingesting files", "count", len(files), "client_id", clientID)

	added, err := h.ingester.IngestFiles(ctx, clientID, files)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to ingest files")
		return
	}
	writeJSON(ctx, w, http.StatusOK, IngestResponse{Status: "ok", Added: added})
}

// IngestURLsRequest is the body of POST /ingest/urls.
type IngestURLsRequest struct {
	URLs []string `json:"urls" validate:"required"`
}

// IngestURLsHandler handles web page ingestion.
type IngestURLsHandler struct {
	ingester Ingester
}

// NewIngestURLsHandler creates a new IngestURLsHandler.
func NewIngestURLsHandler(ingester Ingester) *IngestURLsHandler {
	return &IngestURLsHandler{ingester: ingester}
}

// ServeHTTP handles POST /ingest/urls.
func (h *IngestURLsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestURLsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(ctx, w, err, "Invalid request")
		return
	}

	clientID := r.Header.Get(ClientIDHeader)
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "ingesting urls", "count", len(req.URLs), "client_id", clientID)

	added, err := h.ingester.IngestURLs(ctx, clientID, req.URLs)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to ingest urls")
		return
	}
	writeJSON(ctx, w, http.StatusOK, IngestResponse{Status: "ok", Added: added})
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"research-backend/internal/config"
	"research-backend/internal/extract"
	"research-backend/internal/http"
	"research-backend/internal/indexer"
	"research-backend/internal/llm"
	"research-backend/internal/notify"
	"research-backend/internal/rag"
	"research-backend/internal/storage"
	"research-backend/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize batch ledger
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	batchRepo := storage.NewBatchRepo(db)
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Load the persisted index
	index := vectorstore.NewIndex(cfg.IndexPath, cfg.MetaPath)
	if err := index.Load(); err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	slog.Info("Index loaded", "index_path", cfg.IndexPath, "meta_path", cfg.MetaPath, "count", index.Len(), "dim", index.Dim())

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}

	// Validate embedder output (fail-fast)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedder: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) == 0 {
		log.Fatalf("Embedder returned no vector")
	}
	dim := len(testEmbeddings[0])
	if index.Dim() != 0 && index.Dim() != dim {
		slog.Warn("Embedder dimension differs from index; ingestion and queries will fail until the index is rebuilt",
			"embedder_dim", dim, "index_dim", index.Dim())
	}
	slog.Info("Embedder validated", "embedder", cfg.Embedder, "vector_size", dim)

	hub := notify.NewHub()
	pipeline := indexer.NewPipeline(
		index,
		embedder,
		extract.NewFileExtractor(),
		extract.NewWebFetcher(cfg.FetchTimeout, cfg.FetchRPS),
		hub,
		cfg.ChunkSize,
		cfg.ChunkOverlap,
	)
	pipeline.SetLedger(batchRepo)

	// Optional Qdrant mirror
	if cfg.QdrantURL != "" {
		mirror, err := vectorstore.NewQdrantMirror(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		defer func() {
			_ = mirror.Close()
		}()
		if err := mirror.EnsureCollection(ctx, dim); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		pipeline.SetMirror(mirror)
		slog.Info("Qdrant mirror enabled", "url", cfg.QdrantURL, "collection", cfg.QdrantCollection, "vector_size", dim)
	}

	ragEngine := rag.NewEngine(embedder, index)

	// Create router with dependencies
	router := http.NewRouter(&http.Deps{
		Index:       index,
		Ingester:    pipeline,
		Engine:      ragEngine,
		Hub:         hub,
		Batches:     batchRepo,
		MaxUploadMB: cfg.MaxUploadMB,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when a signal arrives
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		slog.Info("Shutting down API server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", server.Addr, "indexed", index.Len())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// newEmbedder builds the configured embedder. The http embedder probes the
// model list first and only warns when the model is missing.
func newEmbedder(ctx context.Context, cfg *config.Config) (llm.Embedder, error) {
	if cfg.Embedder == "hash" {
		return llm.NewHashEmbedder(cfg.EmbeddingDim)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ok, err := llm.NewModelProbe(cfg.EmbeddingBaseURL).Available(probeCtx, cfg.EmbeddingModelName)
	switch {
	case err != nil:
		slog.Warn("Could not list embedding models", "base_url", cfg.EmbeddingBaseURL, "error", err)
	case !ok:
		slog.Warn("Embedding model not reported by server", "base_url", cfg.EmbeddingBaseURL, "model", cfg.EmbeddingModelName)
	}

	return llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, 0), nil
}

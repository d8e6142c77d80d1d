package rag

import (
	"context"
	"fmt"

	"research-backend/internal/contextutil"
	"research-backend/internal/llm"
	"research-backend/internal/service"
	"research-backend/internal/vectorstore"
)

// DefaultTopK is used when a query does not ask for a positive result count.
const DefaultTopK = 5

// Engine answers similarity queries against the local index.
type Engine interface {
	// Query embeds text and returns the topK most similar chunks, best first.
	Query(ctx context.Context, text string, topK int) ([]vectorstore.Record, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder llm.Embedder
	index    *vectorstore.Index
}

// NewEngine creates a new query engine.
func NewEngine(embedder llm.Embedder, index *vectorstore.Index) Engine {
	return &ragEngine{
		embedder: embedder,
		index:    index,
	}
}

// Query embeds text and searches the index. Only the empty string is
// rejected; whitespace is embedded like any other text.
func (e *ragEngine) Query(ctx context.Context, text string, topK int) ([]vectorstore.Record, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if text == "" {
		return nil, &service.ValidationError{Field: "query", Message: "query is required"}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	logger.InfoContext(ctx, "query started", "query_length", len(text), "top_k", topK)

	embeddings, err := e.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: failed to embed query: %w", service.ErrExternalService, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	results, err := e.index.Search(embeddings[0], topK)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search index", "error", err)
		return nil, service.WrapError(err, "failed to search index")
	}

	logger.InfoContext(ctx, "query completed", "results_count", len(results), "indexed", e.index.Len())
	if len(results) > 0 {
		topScores := make([]float32, 0, 3)
		for i := 0; i < len(results) && i < 3; i++ {
			topScores = append(topScores, *results[i].Score)
		}
		logger.DebugContext(ctx, "top search results", "top_3_scores", topScores)
	}

	return results, nil
}

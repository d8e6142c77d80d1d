package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks research-backend/internal/llm Embedder

import "context"

// Embedder turns texts into fixed-width vectors.
type Embedder interface {
	// EmbedTexts returns one vector per text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the width of produced vectors, or 0 if unknown.
	Dimension() int
}

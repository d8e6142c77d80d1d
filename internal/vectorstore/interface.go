package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_mirror.go -package=mocks research-backend/internal/vectorstore Mirror

import "context"

// Record is the metadata stored alongside each vector.
// Title and URL are nullable: files have no URL, URL sources have no title.
type Record struct {
	Title   *string  `json:"title"`
	URL     *string  `json:"url"`
	ChunkID string   `json:"chunk_id"`
	Text    string   `json:"text"`
	Score   *float32 `json:"score,omitempty"`
}

// Mirror receives a copy of every batch appended to the local index.
// The local index stays authoritative; a mirror is best effort.
type Mirror interface {
	// EnsureCollection prepares the remote collection for vectors of the given size.
	EnsureCollection(ctx context.Context, vectorSize int) error

	// Upsert copies vectors and their records to the remote store.
	Upsert(ctx context.Context, vectors [][]float32, records []Record) error
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"research-backend/internal/contextutil"
)

// QdrantMirror copies indexed chunks into a Qdrant collection.
type QdrantMirror struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantMirror creates a mirror for the given collection.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) is derived from the HTTP port.
func NewQdrantMirror(urlStr, collection string) (*QdrantMirror, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantMirror{
		client:     client,
		collection: collection,
	}, nil
}

func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// PointID maps a chunk id to a stable UUID so re-upserts overwrite.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func recordPayload(r Record) map[string]any {
	payload := map[string]any{
		"chunk_id": r.ChunkID,
		"text":     r.Text,
	}
	if r.Title != nil {
		payload["title"] = *r.Title
	}
	if r.URL != nil {
		payload["url"] = *r.URL
	}
	return payload
}

// Upsert inserts or updates one point per record.
func (m *QdrantMirror) Upsert(ctx context.Context, vectors [][]float32, records []Record) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(vectors) != len(records) {
		return fmt.Errorf("%w: %d vectors, %d records", ErrLengthMismatch, len(vectors), len(records))
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(r.ChunkID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(recordPayload(r)),
		})
	}

	_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.collection,
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", m.collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "mirrored points", "collection", m.collection, "count", len(points))
	return nil
}

// EnsureCollection creates the collection if missing, or validates its vector
// size if it exists.
func (m *QdrantMirror) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", m.collection, "vector_size", vectorSize)
		err := m.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: m.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := m.client.GetCollectionInfo(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	var actualSize uint64
	if config := info.Config; config != nil && config.Params != nil {
		if vectorsConfig := config.Params.GetVectorsConfig(); vectorsConfig != nil {
			if params := vectorsConfig.GetParams(); params != nil {
				actualSize = params.Size
			}
		}
	}
	if actualSize == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if int(actualSize) != vectorSize {
		return fmt.Errorf("%w: collection has %d, expected %d", ErrDimensionMismatch, actualSize, vectorSize)
	}

	logger.InfoContext(ctx, "collection validated", "collection", m.collection, "vector_size", vectorSize)
	return nil
}

// Close releases the underlying gRPC connection.
func (m *QdrantMirror) Close() error {
	return m.client.Close()
}

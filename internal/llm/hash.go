package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashEmbedder is a local, deterministic embedder based on feature hashing.
// Each lowercase word token and each adjacent word pair is hashed into one of
// dim buckets with a signed weight, then the vector is L2-normalized. Texts
// sharing vocabulary land close together; no model or network is required.
type HashEmbedder struct {
	dim          int
	tokenPattern *regexp.Regexp
}

// NewHashEmbedder creates a hashing embedder producing vectors of width dim.
func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hash embedder dimension must be greater than 0, got %d", dim)
	}
	return &HashEmbedder{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
	}, nil
}

// Dimension returns the vector width.
func (e *HashEmbedder) Dimension() int { return e.dim }

// EmbedTexts embeds every text independently.
func (e *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float64, e.dim)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)

	for i, tok := range tokens {
		e.add(vec, tok, 1.0)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

func (e *HashEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dim))
	// High bit picks the sign so collisions tend to cancel
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

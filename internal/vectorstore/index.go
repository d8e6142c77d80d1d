package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	// normEpsilon keeps normalization finite for zero vectors.
	normEpsilon = 1e-8

	// MaxDimension is the widest vector the index stores or loads.
	MaxDimension = 1 << 16
)

var (
	// ErrDimensionMismatch is returned when a vector's width differs from the store's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch is returned when vectors and records are not index-aligned.
	ErrLengthMismatch = errors.New("vectors and records length mismatch")
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be greater than 0")
	// ErrPersistence is returned when an artifact cannot be written or read.
	ErrPersistence = errors.New("persistence error")
)

// Index is an append-only, in-memory vector store searched by normalized
// inner product (cosine similarity). Vectors and records are kept
// index-aligned: vectors[i] belongs to records[i].
//
// Add takes the write lock; Search, Save and the accessors take the read lock,
// so readers never observe a partially applied Add.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	records []Record

	indexPath string
	metaPath  string
}

// NewIndex creates an empty index persisted to indexPath (binary vectors) and
// metaPath (JSON records).
func NewIndex(indexPath, metaPath string) *Index {
	return &Index{
		indexPath: indexPath,
		metaPath:  metaPath,
	}
}

// IndexPath returns the path of the binary vector artifact.
func (x *Index) IndexPath() string { return x.indexPath }

// MetaPath returns the path of the JSON metadata artifact.
func (x *Index) MetaPath() string { return x.metaPath }

// Initialize fixes the dimension. It is a no-op once a dimension is set.
func (x *Index) Initialize(dim int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked(dim)
}

func (x *Index) initLocked(dim int) {
	if x.dim == 0 && dim > 0 {
		x.dim = dim
	}
}

// Add appends vectors and their records. Every vector must have the store's
// dimension (or, for the first add, the width of the first vector). On error
// nothing is appended.
func (x *Index) Add(vectors [][]float32, records []Record) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: %d vectors, %d records", ErrLengthMismatch, len(vectors), len(records))
	}
	if len(vectors) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	want := x.dim
	if want == 0 {
		want = len(vectors[0])
	}
	if want == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if want > MaxDimension {
		return fmt.Errorf("%w: %d dimensions exceeds %d", ErrDimensionMismatch, want, MaxDimension)
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), want)
		}
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		normalized[i] = normalize(v)
	}
	stored := make([]Record, len(records))
	for i, r := range records {
		r.Score = nil
		stored[i] = r
	}

	x.initLocked(want)
	x.vectors = append(x.vectors, normalized...)
	x.records = append(x.records, stored...)
	return nil
}

// Search returns up to k records ordered by descending similarity to query.
// Ties keep insertion order. Each result is a copy carrying its score.
func (x *Index) Search(query []float32, k int) ([]Record, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dim == 0 || len(x.vectors) == 0 {
		return []Record{}, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(query), x.dim)
	}

	q := normalize(query)
	type hit struct {
		idx   int
		score float32
	}
	hits := make([]hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = hit{idx: i, score: dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	if k > len(hits) {
		k = len(hits)
	}
	results := make([]Record, k)
	for i := 0; i < k; i++ {
		r := x.records[hits[i].idx]
		score := hits[i].score
		r.Score = &score
		results[i] = r
	}
	return results, nil
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Dim returns the fixed dimension, or 0 while uninitialized.
func (x *Index) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Recent returns the last n records, newest first.
func (x *Index) Recent(n int) []Record {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if n > len(x.records) {
		n = len(x.records)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Record, 0, n)
	for i := len(x.records) - 1; i >= len(x.records)-n; i-- {
		out = append(out, x.records[i])
	}
	return out
}

// Records returns a copy of all stored records in insertion order.
func (x *Index) Records() []Record {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Record, len(x.records))
	copy(out, x.records)
	return out
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum) + normEpsilon
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

package indexer

import (
	"math"
	"sort"
	"unicode/utf8"

	"research-backend/internal/storage"
)

// chunkLengths returns the rune length of every chunk.
func chunkLengths(chunks []string) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = utf8.RuneCountInString(c)
	}
	return out
}

// computeChunkStats computes min, max, mean and p95 of chunk lengths.
func computeChunkStats(lengths []int) storage.ChunkStats {
	if len(lengths) == 0 {
		return storage.ChunkStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range lengths {
		sum += n
	}
	mean := float64(sum) / float64(len(lengths))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return storage.ChunkStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}

package indexer

import (
	"testing"

	"research-backend/internal/storage"
)

func TestComputeChunkStats(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		want    storage.ChunkStats
	}{
		{
			name:    "empty",
			lengths: nil,
			want:    storage.ChunkStats{},
		},
		{
			name:    "single",
			lengths: []int{42},
			want:    storage.ChunkStats{Min: 42, Max: 42, Mean: 42, P95: 42},
		},
		{
			name:    "unsorted",
			lengths: []int{30, 10, 20},
			want:    storage.ChunkStats{Min: 10, Max: 30, Mean: 20, P95: 30},
		},
		{
			name:    "mean rounds to two places",
			lengths: []int{1, 2, 2},
			want:    storage.ChunkStats{Min: 1, Max: 2, Mean: 1.67, P95: 2},
		},
		{
			name:    "p95 of twenty",
			lengths: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 100},
			want:    storage.ChunkStats{Min: 1, Max: 100, Mean: 14.5, P95: 19},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeChunkStats(tt.lengths)
			if got != tt.want {
				t.Errorf("computeChunkStats(%v) = %+v, want %+v", tt.lengths, got, tt.want)
			}
		})
	}
}

func TestChunkLengthsCountsRunes(t *testing.T) {
	got := chunkLengths([]string{"abc", "héllo", ""})
	want := []int{3, 5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunkLengths()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

package llm

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestNewHashEmbedder_InvalidDim(t *testing.T) {
	for _, dim := range []int{0, -3} {
		if _, err := NewHashEmbedder(dim); err == nil {
			t.Errorf("NewHashEmbedder(%d) expected error", dim)
		}
	}
}

func TestHashEmbedder_EmbedTexts(t *testing.T) {
	e, err := NewHashEmbedder(64)
	if err != nil {
		t.Fatalf("NewHashEmbedder() error = %v", err)
	}
	if e.Dimension() != 64 {
		t.Errorf("Dimension() = %d, want 64", e.Dimension())
	}

	texts := []string{
		"Quarterly revenue grew in the energy sector.",
		"quarterly REVENUE grew in the energy sector",
		"The cat sat on the mat.",
		"",
	}
	vecs, err := e.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("EmbedTexts() returned %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != 64 {
			t.Errorf("vector %d has width %d, want 64", i, len(v))
		}
	}

	if sim := cosine(vecs[0], vecs[1]); math.Abs(sim-1) > 1e-5 {
		t.Errorf("case and punctuation should not matter, similarity = %v", sim)
	}
	if cosine(vecs[0], vecs[2]) >= cosine(vecs[0], vecs[1]) {
		t.Error("unrelated text should be less similar than a paraphrase")
	}
	for _, f := range vecs[3] {
		if f != 0 {
			t.Fatalf("empty text should embed to the zero vector, got %v", vecs[3])
		}
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	a, _ := NewHashEmbedder(32)
	b, _ := NewHashEmbedder(32)
	va, _ := a.EmbedTexts(context.Background(), []string{"same input text"})
	vb, _ := b.EmbedTexts(context.Background(), []string{"same input text"})
	for i := range va[0] {
		if va[0][i] != vb[0][i] {
			t.Fatalf("embeddings differ at %d: %v vs %v", i, va[0][i], vb[0][i])
		}
	}
}

func TestHashEmbedder_CanceledContext(t *testing.T) {
	e, _ := NewHashEmbedder(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.EmbedTexts(ctx, []string{"x"}); err == nil {
		t.Error("EmbedTexts() with canceled context expected error")
	}
}

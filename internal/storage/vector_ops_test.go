package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeVectorRoundTrip(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, math.MaxFloat32}
	assert.Equal(t, vec, deserializeVector(serializeVector(vec)))
	assert.Len(t, serializeVector(vec), 16)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-6)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

// TestCosineSimilarityClamped verifies float error never pushes the score past 1.
func TestCosineSimilarityClamped(t *testing.T) {
	v := []float32{0.1, 0.7, 0.3, 0.9, 0.2}
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, CosineSimilarity(v, v), 1.0)
	}
}

func TestRankBySimilarity(t *testing.T) {
	records := []*EmbeddingRecord{
		{ID: "far.md", Vector: []float32{0, 1}},
		{ID: "b.md", Vector: []float32{1, 0.1}},
		{ID: "a.md", Vector: []float32{1, 0.1}},
		{ID: "exact.md", Vector: []float32{1, 0}},
	}

	ranked := RankBySimilarity([]float32{1, 0}, records, 0.75)

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"exact.md", "a.md", "b.md"}, ids)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

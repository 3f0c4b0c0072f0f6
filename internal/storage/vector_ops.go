package storage

import (
	"encoding/binary"
	"math"
	"sort"
)

// serializeVector encodes a vector as little-endian float32s.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped
// to [-1, 1]. Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}

// Scored pairs a record ID with a similarity score.
type Scored struct {
	ID    string
	Score float64
}

// RankBySimilarity scores every record against query and returns those at or
// above threshold, best first, ties broken by ID.
func RankBySimilarity(query []float32, records []*EmbeddingRecord, threshold float64) []Scored {
	ranked := make([]Scored, 0, len(records))
	for _, r := range records {
		score := CosineSimilarity(query, r.Vector)
		if score >= threshold {
			ranked = append(ranked, Scored{ID: r.ID, Score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score == ranked[j].Score {
			return ranked[i].ID < ranked[j].ID
		}
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

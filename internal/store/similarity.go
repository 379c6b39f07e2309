package store

import (
	"math"

	"github.com/spigell/panel-interview/internal/domain"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// mostSimilar is the linear scan shared by both implementations. Ties keep
// the earliest candidate.
func mostSimilar(candidates []*domain.PanelRecord, embedding []float64) (*domain.PanelRecord, float64) {
	var (
		best      *domain.PanelRecord
		bestScore = math.Inf(-1)
	)
	for _, candidate := range candidates {
		score := Cosine(embedding, candidate.Embedding)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

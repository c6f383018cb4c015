package retrieval

import "math"

// CosineSimilarity returns the cosine of the angle between a and b:
// dot(a,b) / (|a| * |b|), in [-1, 1] for non-zero vectors.
//
// Degenerate inputs return exactly 0 rather than NaN or an error: a zero
// vector has no direction, and a dimension mismatch is a logic error the
// caller should log but must not let break the retrieval fan-out.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

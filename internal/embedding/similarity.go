package embedding

import "math"

// CosineSimilarity returns dot(a,b)/(|a||b|). Returns 0 when the vectors
// differ in length or either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
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

// EuclideanSimilarity maps Euclidean distance into (0,1]: 1/(1+|a-b|).
// Returns 0 when the vectors differ in length.
func EuclideanSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return 1.0 / (1.0 + math.Sqrt(sum))
}

package domain

import "math"

// CosineSimilarity returns the cosine of the angle between a and b: the dot
// product divided by the product of the magnitudes. A zero magnitude is
// floored to 1 so a null vector scores 0 instead of dividing by zero.
// Vectors of different lengths are compared over the shorter prefix.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 {
		normA = 1
	}
	if normB == 0 {
		normB = 1
	}

	return dot / (normA * normB)
}

// IsZeroVector reports whether every component of v is zero.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

package similarity

import "math"

// Cosine returns the cosine similarity of two embeddings. Mismatched
// dimensions and zero vectors score 0, and anti-correlated vectors are floored
// at 0 so the result stays a valid signal.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

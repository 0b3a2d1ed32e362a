package domain

// Similarity converts an angular (chord) distance in [0, 2] to cosine
// similarity in [-1, 1]: 1 - d²/2.
func Similarity(distance float64) float64 {
	return 1 - (distance*distance)/2
}

package core

// Channel weights for the overall probability. Non-adaptive.
const (
	BodyWeight = 0.85
	URLWeight  = 0.15
)

// FuseScores combines the body probability with the mean URL probability.
// Without URL probabilities the body probability is returned unchanged.
func FuseScores(bodyProbability float64, urlProbabilities []float64) float64 {
	if len(urlProbabilities) == 0 {
		return bodyProbability
	}
	return BodyWeight*bodyProbability + URLWeight*Mean(urlProbabilities)
}

// Mean returns the arithmetic mean of xs, 0 when empty
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

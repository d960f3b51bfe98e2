package core

import (
	"math"
)

// ImportanceMap folds an ordered explanation into a token map; a repeated
// token keeps its last weight
func ImportanceMap(weights []TokenWeight) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for _, w := range weights {
		out[w.Token] = w.Weight
	}
	return out
}

// NormalizeExplanation rescales weights into [-1, 1] by the largest absolute
// weight, so that entry maps to exactly -1 or 1
func NormalizeExplanation(weights map[string]float64) (map[string]float64, error) {
	maxAbs := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, ErrNonFiniteWeight
		}
		if a := math.Abs(w); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return nil, ErrEmptyExplanation
	}

	out := make(map[string]float64, len(weights))
	for token, w := range weights {
		out[token] = w / maxAbs
	}
	return out, nil
}

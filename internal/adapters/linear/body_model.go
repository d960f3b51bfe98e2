package linear

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/preprocess"
)

// BodyModel is a bag-of-tokens logistic model over normalised bodies.
// Weights are keyed by token as produced by preprocess.Tokenize.
type BodyModel struct {
	Bias    float64            `yaml:"bias"`
	Weights map[string]float64 `yaml:"weights"`
}

// LoadBodyModel reads a yaml body model from path
func LoadBodyModel(path string) (*BodyModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read body model %s: %w", path, err)
	}
	return ParseBodyModel(data)
}

// ParseBodyModel decodes a yaml body model
func ParseBodyModel(data []byte) (*BodyModel, error) {
	var m BodyModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse body model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("body model has no weights")
	}
	if !finite(m.Bias) {
		return nil, fmt.Errorf("body model bias is not finite")
	}
	for token, w := range m.Weights {
		if !finite(w) {
			return nil, fmt.Errorf("body model weight for %q is not finite", token)
		}
	}
	return &m, nil
}

// PredictProba implements core.BodyClassifier. Each distinct token counts once.
func (m *BodyModel) PredictProba(ctx context.Context, texts []string) ([]core.ClassProbabilities, error) {
	out := make([]core.ClassProbabilities, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		z := m.Bias
		seen := make(map[string]struct{})
		for _, token := range preprocess.Tokenize(text) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			z += m.Weights[token]
		}
		out = append(out, core.FromPhishing(sigmoid(z)))
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

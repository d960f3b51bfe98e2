package linear

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// URLModel is a logistic model over standardised URL feature vectors.
// Maps are keyed by feature name; a missing mean is 0 and a missing or zero
// scale is 1.
type URLModel struct {
	Bias         float64            `yaml:"bias"`
	Coefficients map[string]float64 `yaml:"coefficients"`
	Mean         map[string]float64 `yaml:"mean"`
	Scale        map[string]float64 `yaml:"scale"`

	coef  []float64
	mean  []float64
	scale []float64
}

// LoadURLModel reads a yaml URL model from path
func LoadURLModel(path string) (*URLModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL model %s: %w", path, err)
	}
	return ParseURLModel(data)
}

// ParseURLModel decodes a yaml URL model
func ParseURLModel(data []byte) (*URLModel, error) {
	var m URLModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse URL model: %w", err)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("URL model has no coefficients")
	}

	index := make(map[string]int, len(urlfeatures.FeatureNames))
	for i, name := range urlfeatures.FeatureNames {
		index[name] = i
	}
	for _, section := range []map[string]float64{m.Coefficients, m.Mean, m.Scale} {
		for name, v := range section {
			if _, ok := index[name]; !ok {
				return nil, fmt.Errorf("URL model references unknown feature %q", name)
			}
			if !finite(v) {
				return nil, fmt.Errorf("URL model value for %q is not finite", name)
			}
		}
	}

	n := len(urlfeatures.FeatureNames)
	m.coef = make([]float64, n)
	m.mean = make([]float64, n)
	m.scale = make([]float64, n)
	for i, name := range urlfeatures.FeatureNames {
		m.coef[i] = m.Coefficients[name]
		m.mean[i] = m.Mean[name]
		m.scale[i] = 1
		if s, ok := m.Scale[name]; ok && s != 0 {
			m.scale[i] = s
		}
	}
	return &m, nil
}

// PredictProba implements core.URLClassifier
func (m *URLModel) PredictProba(ctx context.Context, features []urlfeatures.Vector) ([]core.ClassProbabilities, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.ClassProbabilities, 0, len(features))
	for _, vec := range features {
		z := m.Bias
		for i, x := range vec.Values() {
			z += m.coef[i] * (x - m.mean[i]) / m.scale[i]
		}
		out = append(out, core.FromPhishing(sigmoid(z)))
	}
	return out, nil
}

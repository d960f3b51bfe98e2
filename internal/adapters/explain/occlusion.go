package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/preprocess"
)

// DefaultMaxCandidates bounds how many distinct tokens are occluded per text
const DefaultMaxCandidates = 200

// OcclusionExplainer weighs each distinct token by how much the phishing
// probability drops when every occurrence of it is removed
type OcclusionExplainer struct {
	maxCandidates int
	logger        *zap.Logger
}

// NewOcclusionExplainer creates a new occlusion explainer
func NewOcclusionExplainer(maxCandidates int, logger *zap.Logger) *OcclusionExplainer {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OcclusionExplainer{
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// Explain implements core.Explainer. The reference text and every occluded
// variant are scored in a single predict call.
func (e *OcclusionExplainer) Explain(ctx context.Context, text string, predict core.PredictFunc, numFeatures int) ([]core.TokenWeight, error) {
	tokens := preprocess.Tokenize(text)
	candidates := distinct(tokens, e.maxCandidates)
	if len(candidates) == 0 {
		return []core.TokenWeight{}, nil
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, strings.Join(tokens, " "))
	for _, candidate := range candidates {
		texts = append(texts, withoutToken(tokens, candidate))
	}

	rows, err := predict(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("%w: got %d rows for %d texts", core.ErrInvalidProbabilities, len(rows), len(texts))
	}

	base := rows[0].Phishing()
	weights := make([]core.TokenWeight, 0, len(candidates))
	for i, candidate := range candidates {
		weights = append(weights, core.TokenWeight{
			Token:  candidate,
			Weight: base - rows[i+1].Phishing(),
		})
	}

	sort.SliceStable(weights, func(i, j int) bool {
		ai, aj := math.Abs(weights[i].Weight), math.Abs(weights[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return weights[i].Token < weights[j].Token
	})
	if numFeatures > 0 && len(weights) > numFeatures {
		weights = weights[:numFeatures]
	}

	e.logger.Debug("Explained body score",
		zap.Int("tokens", len(tokens)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(weights)))

	return weights, nil
}

// distinct returns tokens in order of first appearance, at most limit of them
func distinct(tokens []string, limit int) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

func withoutToken(tokens []string, drop string) string {
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != drop {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

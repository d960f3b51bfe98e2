package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/explain"
	"github.com/mikey/phish-scorer/internal/adapters/linear"
	"github.com/mikey/phish-scorer/internal/adapters/store"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/metrics"
	"github.com/mikey/phish-scorer/internal/whitelist"
)

// testBodyModel scores "verify your account" style mail as phishing:
// z = -1 + 1.5 + 1.0 = 1.5 when both cue words are present
func testBodyModel() *linear.BodyModel {
	return &linear.BodyModel{
		Bias: -1,
		Weights: map[string]float64{
			"verify":  1.5,
			"account": 1.0,
			"meeting": -2.0,
		},
	}
}

type failingClassifier struct{}

func (failingClassifier) PredictProba(context.Context, []string) ([]core.ClassProbabilities, error) {
	return nil, errors.New("connection refused")
}

type testScorerOptions struct {
	body      core.BodyClassifier
	whitelist []string
	noStore   bool
}

func newTestScorer(t *testing.T, opts testScorerOptions) (*Scorer, *metrics.Metrics, *store.MemoryStore) {
	t.Helper()

	body := opts.body
	if body == nil {
		body = testBodyModel()
	}
	service, err := core.NewPhishingService(
		body,
		nil,
		explain.NewOcclusionExplainer(0, zap.NewNop()),
		nil,
		zap.NewNop(),
		core.Settings{Threshold: 0.5},
	)
	require.NoError(t, err)

	m := metrics.New(false)
	checker := whitelist.NewChecker(opts.whitelist, zap.NewNop())

	if opts.noStore {
		return NewScorer(service, checker, nil, m, time.Hour, zap.NewNop()), m, nil
	}
	mem := store.NewMemoryStore(zap.NewNop(), 0)
	t.Cleanup(mem.Stop)
	return NewScorer(service, checker, mem, m, time.Hour, zap.NewNop()), m, mem
}

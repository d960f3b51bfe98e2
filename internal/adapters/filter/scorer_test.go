package filter

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/metrics"
)

func TestScorer_ScoreStoresVerdict(t *testing.T) {
	scorer, m, mem := newTestScorer(t, testScorerOptions{})

	result, err := scorer.Score(context.Background(), &core.Email{
		From: "billing@evil.example",
		Body: "Verify your account now",
	}, 5)
	require.NoError(t, err)
	assert.True(t, result.IsPhishing)
	assert.InDelta(t, 0.8176, result.OverallProbability, 1e-4)
	assert.Equal(t, 1, mem.Len())

	v, err := scorer.Verdict(context.Background(), result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, result.RequestID, v.ID)
	assert.True(t, v.IsPhishing)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(metrics.OutcomePhishing)))
}

func TestScorer_WhitelistedSenderBypassesPipeline(t *testing.T) {
	scorer, m, mem := newTestScorer(t, testScorerOptions{
		body:      failingClassifier{},
		whitelist: []string{"example.com"},
	})

	result, err := scorer.Score(context.Background(), &core.Email{
		From: "Alice <alice@mail.example.com>",
		Body: "Verify your account now",
	}, 5)
	require.NoError(t, err)
	assert.True(t, result.Whitelisted)
	assert.False(t, result.IsPhishing)
	assert.Empty(t, result.Importance)
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(metrics.OutcomeWhitelisted)))
}

func TestScorer_ErrorCountsAndSkipsStore(t *testing.T) {
	scorer, m, mem := newTestScorer(t, testScorerOptions{body: failingClassifier{}})

	_, err := scorer.Score(context.Background(), &core.Email{Body: "hello"}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCollaboratorUnavailable)
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(metrics.OutcomeError)))
}

func TestScorer_VerdictWithoutStore(t *testing.T) {
	scorer, _, _ := newTestScorer(t, testScorerOptions{noStore: true})

	_, err := scorer.Verdict(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

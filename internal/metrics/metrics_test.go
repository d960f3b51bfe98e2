package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phish-scorer/internal/core"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(false)

	m.ObserveResult(&core.FusedResult{OverallProbability: 0.9, IsPhishing: true, URLs: []string{"http://a"}})
	m.ObserveResult(&core.FusedResult{OverallProbability: 0.1})
	m.ObserveResult(&core.FusedResult{OverallProbability: 0.2})
	m.ObserveError()
	m.ObserveWhitelisted()
	m.URLParseFailures.Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(OutcomePhishing)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Classifications.WithLabelValues(OutcomeBenign)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(OutcomeWhitelisted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.URLParseFailures))

	count, err := testutil.GatherAndCount(m.Registry, "phish_scorer_overall_probability")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New(true)
	b := New(true)
	a.ObserveError()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Classifications.WithLabelValues(OutcomeError)))
}

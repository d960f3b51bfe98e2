package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExplanation(t *testing.T) {
	got, err := NormalizeExplanation(map[string]float64{"free": 0.4, "click": -0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got["free"], 1e-12)
	assert.InDelta(t, -1.0, got["click"], 1e-12)
}

func TestNormalizeExplanation_LargestMapsToOne(t *testing.T) {
	got, err := NormalizeExplanation(map[string]float64{"a": 3, "b": 1.5, "c": -0.75, "d": 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["a"])
	assert.Equal(t, 0.5, got["b"])
	assert.Equal(t, -0.25, got["c"])
	assert.Equal(t, 0.0, got["d"])
	for _, w := range got {
		assert.LessOrEqual(t, math.Abs(w), 1.0)
	}
}

func TestNormalizeExplanation_Errors(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		wantErr error
	}{
		{name: "nil", weights: nil, wantErr: ErrEmptyExplanation},
		{name: "empty", weights: map[string]float64{}, wantErr: ErrEmptyExplanation},
		{name: "all zero", weights: map[string]float64{"a": 0, "b": 0}, wantErr: ErrEmptyExplanation},
		{name: "nan", weights: map[string]float64{"a": math.NaN()}, wantErr: ErrNonFiniteWeight},
		{name: "inf", weights: map[string]float64{"a": 1, "b": math.Inf(-1)}, wantErr: ErrNonFiniteWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeExplanation(tt.weights)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestImportanceMap_LastWins(t *testing.T) {
	got := ImportanceMap([]TokenWeight{{Token: "a", Weight: 1}, {Token: "b", Weight: 2}, {Token: "a", Weight: 3}})
	assert.Equal(t, map[string]float64{"a": 3, "b": 2}, got)
}

func TestClassProbabilities(t *testing.T) {
	p := ClassProbabilities{0.3, 0.7}
	assert.Equal(t, ClassPhishing, p.PredictedClass())
	assert.Equal(t, 0.7, p.Confidence())

	tie := ClassProbabilities{0.5, 0.5}
	assert.Equal(t, ClassBenign, tie.PredictedClass())

	assert.Equal(t, ClassProbabilities{0.75, 0.25}, FromPhishing(0.25))
}

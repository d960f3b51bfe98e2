package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

type flakyBody struct {
	err   error
	calls int
}

func (f *flakyBody) PredictProba(_ context.Context, texts []string) ([]core.ClassProbabilities, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.ClassProbabilities, len(texts))
	for i := range out {
		out[i] = core.FromPhishing(0.9)
	}
	return out, nil
}

type flakyURL struct {
	err   error
	calls int
}

func (f *flakyURL) PredictProba(_ context.Context, features []urlfeatures.Vector) ([]core.ClassProbabilities, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]core.ClassProbabilities, len(features)), nil
}

func testSettings() BreakerSettings {
	s := DefaultBreakerSettings()
	s.ConsecutiveFailures = 2
	s.Timeout = time.Hour
	return s
}

func TestBreakerBodyClassifier_PassesThrough(t *testing.T) {
	next := &flakyBody{}
	b := NewBreakerBodyClassifier(next, "body", testSettings(), zap.NewNop())

	rows, err := b.PredictProba(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerBodyClassifier_OpensAfterFailures(t *testing.T) {
	boom := errors.New("boom")
	next := &flakyBody{err: boom}
	b := NewBreakerBodyClassifier(next, "body", testSettings(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.PredictProba(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, core.ErrCollaboratorUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.PredictProba(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerBodyClassifier_CancelledDoesNotTrip(t *testing.T) {
	next := &flakyBody{err: context.Canceled}
	b := NewBreakerBodyClassifier(next, "body", testSettings(), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.PredictProba(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerURLClassifier_OpensAfterFailures(t *testing.T) {
	next := &flakyURL{err: errors.New("down")}
	b := NewBreakerURLClassifier(next, "url", testSettings(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, _ = b.PredictProba(context.Background(), []urlfeatures.Vector{{}})
	}
	_, err := b.PredictProba(context.Background(), []urlfeatures.Vector{{}})
	assert.ErrorIs(t, err, core.ErrCollaboratorUnavailable)
	assert.Equal(t, 2, next.calls)

	next.err = nil
	fresh := NewBreakerURLClassifier(next, "url", testSettings(), zap.NewNop())
	rows, err := fresh.PredictProba(context.Background(), []urlfeatures.Vector{{}, {}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

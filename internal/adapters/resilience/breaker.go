package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// BreakerSettings configures a classifier circuit breaker
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultBreakerSettings returns the settings used when none are configured
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

func newBreaker(name string, s BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
				return true
			}
			if counts.Requests == 0 || counts.Requests < s.MinRequests || s.FailureRatio <= 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// A cancelled request says nothing about the collaborator's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// mapBreakerError turns a rejection by an open or saturated breaker into
// core.ErrCollaboratorUnavailable
func mapBreakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", core.ErrCollaboratorUnavailable, name, err)
	}
	return err
}

// BreakerBodyClassifier guards a body classifier with a circuit breaker
type BreakerBodyClassifier struct {
	next core.BodyClassifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerBodyClassifier wraps next
func NewBreakerBodyClassifier(next core.BodyClassifier, name string, s BreakerSettings, logger *zap.Logger) *BreakerBodyClassifier {
	return &BreakerBodyClassifier{next: next, cb: newBreaker(name, s, logger)}
}

// PredictProba implements core.BodyClassifier
func (b *BreakerBodyClassifier) PredictProba(ctx context.Context, texts []string) ([]core.ClassProbabilities, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.PredictProba(ctx, texts)
	})
	if err != nil {
		return nil, mapBreakerError(b.cb.Name(), err)
	}
	return out.([]core.ClassProbabilities), nil
}

// State reports the breaker state
func (b *BreakerBodyClassifier) State() gobreaker.State {
	return b.cb.State()
}

// BreakerURLClassifier guards a URL classifier with a circuit breaker
type BreakerURLClassifier struct {
	next core.URLClassifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerURLClassifier wraps next
func NewBreakerURLClassifier(next core.URLClassifier, name string, s BreakerSettings, logger *zap.Logger) *BreakerURLClassifier {
	return &BreakerURLClassifier{next: next, cb: newBreaker(name, s, logger)}
}

// PredictProba implements core.URLClassifier
func (b *BreakerURLClassifier) PredictProba(ctx context.Context, features []urlfeatures.Vector) ([]core.ClassProbabilities, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.PredictProba(ctx, features)
	})
	if err != nil {
		return nil, mapBreakerError(b.cb.Name(), err)
	}
	return out.([]core.ClassProbabilities), nil
}

// State reports the breaker state
func (b *BreakerURLClassifier) State() gobreaker.State {
	return b.cb.State()
}

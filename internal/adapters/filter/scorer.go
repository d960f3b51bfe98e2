package filter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/metrics"
	"github.com/mikey/phish-scorer/internal/whitelist"
)

// Scorer is the host side of the pipeline shared by every filter: the
// whitelist bypass, the pipeline call, metrics and the verdict audit trail
type Scorer struct {
	service   *core.PhishingService
	whitelist *whitelist.Checker
	store     core.VerdictRepository
	metrics   *metrics.Metrics
	retention time.Duration
	logger    *zap.Logger
}

// NewScorer creates a new scorer. store and m may be nil.
func NewScorer(
	service *core.PhishingService,
	checker *whitelist.Checker,
	store core.VerdictRepository,
	m *metrics.Metrics,
	retention time.Duration,
	logger *zap.Logger,
) *Scorer {
	return &Scorer{
		service:   service,
		whitelist: checker,
		store:     store,
		metrics:   m,
		retention: retention,
		logger:    logger,
	}
}

// Score classifies email, or short-circuits when the sender is whitelisted
func (s *Scorer) Score(ctx context.Context, email *core.Email, numFeatures int) (*core.FusedResult, error) {
	if s.whitelist != nil && email != nil && s.whitelist.IsWhitelisted(email.From) {
		s.logger.Info("Skipping phishing check for whitelisted domain",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))
		if s.metrics != nil {
			s.metrics.ObserveWhitelisted()
		}
		return whitelistedResult(), nil
	}

	result, err := s.service.Classify(ctx, email, numFeatures)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveError()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveResult(result)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, core.NewVerdict(result, s.retention)); err != nil {
			s.logger.Error("Failed to store verdict",
				zap.String("request_id", result.RequestID),
				zap.Error(err))
		}
	}
	return result, nil
}

// Verdict looks up a stored verdict
func (s *Scorer) Verdict(ctx context.Context, id string) (*core.Verdict, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.Get(ctx, id)
}

// ErrStoreDisabled is returned by Verdict when no store is configured
var ErrStoreDisabled = errors.New("verdict store disabled")

func whitelistedResult() *core.FusedResult {
	return &core.FusedResult{
		RequestID:          uuid.NewString(),
		BodyPredictedClass: core.ClassBenign,
		BodyConfidence:     1,
		Whitelisted:        true,
		URLs:               []string{},
		URLResults:         []core.URLResult{},
		Importance:         map[string]float64{},
		AnalyzedAt:         time.Now(),
	}
}

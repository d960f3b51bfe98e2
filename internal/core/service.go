package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/preprocess"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// DefaultNumFeatures is the explanation size used when a caller asks for none
const DefaultNumFeatures = 10

// Settings tunes the pipeline
type Settings struct {
	URLChannelEnabled  bool
	DefaultNumFeatures int
	Threshold          float64
}

// PhishingService is the per-request scoring pipeline. It holds no per-request
// state, so one instance serves concurrent requests.
type PhishingService struct {
	bodyClassifier BodyClassifier
	urlClassifier  URLClassifier
	explainer      Explainer
	normalizer     *preprocess.CategoryNormalizer
	featurizer     *urlfeatures.Featurizer
	logger         *zap.Logger
	settings       Settings
	now            func() time.Time
}

// NewPhishingService creates a new phishing service. urlClassifier may be nil
// only when the URL channel is disabled.
func NewPhishingService(
	bodyClassifier BodyClassifier,
	urlClassifier URLClassifier,
	explainer Explainer,
	featurizer *urlfeatures.Featurizer,
	logger *zap.Logger,
	settings Settings,
) (*PhishingService, error) {
	if bodyClassifier == nil {
		return nil, fmt.Errorf("%w: no body classifier configured", ErrCollaboratorUnavailable)
	}
	if explainer == nil {
		return nil, fmt.Errorf("%w: no explainer configured", ErrCollaboratorUnavailable)
	}
	if settings.URLChannelEnabled && urlClassifier == nil {
		return nil, fmt.Errorf("%w: URL channel enabled without a URL classifier", ErrCollaboratorUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if featurizer == nil {
		featurizer = urlfeatures.NewFeaturizer(logger, nil)
	}
	if settings.DefaultNumFeatures <= 0 {
		settings.DefaultNumFeatures = DefaultNumFeatures
	}

	return &PhishingService{
		bodyClassifier: bodyClassifier,
		urlClassifier:  urlClassifier,
		explainer:      explainer,
		normalizer:     preprocess.NewCategoryNormalizer(),
		featurizer:     featurizer,
		logger:         logger,
		settings:       settings,
		now:            time.Now,
	}, nil
}

// URLChannelEnabled reports whether URLs contribute to the overall score
func (s *PhishingService) URLChannelEnabled() bool {
	return s.settings.URLChannelEnabled && s.urlClassifier != nil
}

// Prepare runs the deterministic part of the pipeline: URLs are pulled out
// before the category rules so their digits survive, then the rest of the
// body is normalised and each URL featurised
func (s *PhishingService) Prepare(email *Email) *PreparedEmail {
	body := ""
	if email != nil {
		body = email.Body
	}

	urls, stripped := preprocess.ExtractAndStrip(body)
	prepared := &PreparedEmail{
		Normalized: s.normalizer.Normalize(stripped),
		URLs:       urls,
		Features:   make([]urlfeatures.Vector, 0, len(urls)),
	}
	for _, u := range urls {
		vec, failures := s.featurizer.Features(u)
		prepared.Features = append(prepared.Features, vec)
		prepared.ParseFailures += failures
	}
	return prepared
}

// Classify scores an email and explains the body score
func (s *PhishingService) Classify(ctx context.Context, email *Email, numFeatures int) (*FusedResult, error) {
	if numFeatures <= 0 {
		numFeatures = s.settings.DefaultNumFeatures
	}
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))
	logger.Debug("Pipeline stage", zap.String("stage", string(StageReceived)))

	prepared := s.Prepare(email)
	logger.Debug("Pipeline stage",
		zap.String("stage", string(StageNormalized)),
		zap.Int("urls", len(prepared.URLs)))
	if len(prepared.URLs) > 0 {
		logger.Debug("Pipeline stage",
			zap.String("stage", string(StageFeaturized)),
			zap.Int("parse_failures", prepared.ParseFailures))
	}

	rows, err := s.predictBody(ctx, []string{prepared.Normalized})
	if err != nil {
		return nil, &StageError{Stage: StageScored, Err: err}
	}
	body := rows[0]

	result := &FusedResult{
		RequestID:          requestID,
		BodyProbability:    body.Phishing(),
		BodyPredictedClass: body.PredictedClass(),
		BodyConfidence:     body.Confidence(),
		URLs:               prepared.URLs,
		URLResults:         []URLResult{},
		URLParseFailures:   prepared.ParseFailures,
	}

	var urlProbabilities []float64
	if s.URLChannelEnabled() && len(prepared.Features) > 0 {
		urlRows, err := s.predictURLs(ctx, prepared.Features)
		if err != nil {
			return nil, &StageError{Stage: StageScored, Err: err}
		}
		urlProbabilities = make([]float64, 0, len(urlRows))
		for i, row := range urlRows {
			result.URLResults = append(result.URLResults, URLResult{
				URL:                 prepared.URLs[i],
				Features:            prepared.Features[i],
				PredictedClass:      row.PredictedClass(),
				PhishingProbability: row.Phishing(),
				BenignProbability:   row.Benign(),
				Confidence:          row.Confidence(),
			})
			urlProbabilities = append(urlProbabilities, row.Phishing())
		}
		avg := Mean(urlProbabilities)
		result.URLAverageProbability = &avg
	}
	result.OverallProbability = FuseScores(result.BodyProbability, urlProbabilities)
	result.IsPhishing = s.IsPhishing(result)
	logger.Debug("Pipeline stage",
		zap.String("stage", string(StageScored)),
		zap.Float64("overall_probability", result.OverallProbability))

	weights, err := s.explainer.Explain(ctx, prepared.Normalized, s.predictBody, numFeatures)
	if err != nil {
		if !errors.Is(err, ErrCollaboratorUnavailable) && !errors.Is(err, ErrInvalidProbabilities) {
			err = fmt.Errorf("%w: explainer: %w", ErrCollaboratorUnavailable, err)
		}
		return nil, &StageError{Stage: StageExplained, Err: err}
	}
	importance, err := NormalizeExplanation(ImportanceMap(weights))
	if err != nil {
		return nil, &StageError{Stage: StageExplained, Err: err}
	}
	result.Importance = importance
	logger.Debug("Pipeline stage",
		zap.String("stage", string(StageExplained)),
		zap.Int("tokens", len(importance)))

	result.AnalyzedAt = s.now()
	logger.Debug("Pipeline stage", zap.String("stage", string(StageCompleted)))
	return result, nil
}

// IsPhishing determines if a result crosses the phishing threshold
func (s *PhishingService) IsPhishing(result *FusedResult) bool {
	return result.OverallProbability >= s.settings.Threshold
}

func (s *PhishingService) predictBody(ctx context.Context, texts []string) ([]ClassProbabilities, error) {
	rows, err := s.bodyClassifier.PredictProba(ctx, texts)
	if err != nil {
		return nil, collaboratorError("body classifier", err)
	}
	if err := validateRows(rows, len(texts)); err != nil {
		return nil, fmt.Errorf("body classifier: %w", err)
	}
	return rows, nil
}

func (s *PhishingService) predictURLs(ctx context.Context, features []urlfeatures.Vector) ([]ClassProbabilities, error) {
	rows, err := s.urlClassifier.PredictProba(ctx, features)
	if err != nil {
		return nil, collaboratorError("URL classifier", err)
	}
	if err := validateRows(rows, len(features)); err != nil {
		return nil, fmt.Errorf("URL classifier: %w", err)
	}
	return rows, nil
}

func collaboratorError(name string, err error) error {
	if errors.Is(err, ErrCollaboratorUnavailable) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaboratorUnavailable, name, err)
}

// validateRows checks row count and that every probability is a finite value in [0, 1]
func validateRows(rows []ClassProbabilities, want int) error {
	if len(rows) != want {
		return fmt.Errorf("%w: got %d rows for %d inputs", ErrInvalidProbabilities, len(rows), want)
	}
	for i, row := range rows {
		for _, p := range row {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return fmt.Errorf("%w: row %d has %v", ErrInvalidProbabilities, i, row)
			}
		}
	}
	return nil
}

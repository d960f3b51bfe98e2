package factory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/explain"
	"github.com/mikey/phish-scorer/internal/adapters/linear"
	"github.com/mikey/phish-scorer/internal/adapters/onnx"
	"github.com/mikey/phish-scorer/internal/adapters/resilience"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
)

// ClassifierFactory creates the pipeline collaborators from configuration
// and owns the resources they hold open
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	closers       []func() error
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateBodyClassifier creates the configured body classifier. Load failures
// are reported as core.ErrCollaboratorUnavailable.
func (f *ClassifierFactory) CreateBodyClassifier(ctx context.Context) (core.BodyClassifier, error) {
	bodyCfg := f.cfg.GetBodyClassifier()

	var classifier core.BodyClassifier
	var err error
	switch bodyCfg.Provider {
	case "linear":
		classifier, err = linear.LoadBodyModel(bodyCfg.ModelPath)
	case "openai":
		classifier, err = NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateBodyClassifier()
	case "bedrock":
		classifier, err = NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateBodyClassifier(ctx)
	case "gemini":
		c, gerr := NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateBodyClassifier(ctx)
		if gerr == nil {
			f.closers = append(f.closers, c.Close)
			classifier = c
		}
		err = gerr
	default:
		return nil, fmt.Errorf("unsupported body classifier provider: %s", bodyCfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: body classifier %s: %w", core.ErrCollaboratorUnavailable, bodyCfg.Provider, err)
	}

	f.logger.Info("Created body classifier", zap.String("provider", bodyCfg.Provider))
	if breakerCfg := f.cfg.GetBreaker(); breakerCfg.Enabled {
		classifier = resilience.NewBreakerBodyClassifier(classifier, "body-"+bodyCfg.Provider, breakerSettings(breakerCfg), f.logger)
	}
	return classifier, nil
}

// CreateURLClassifier creates the configured URL classifier, or nil when the
// URL channel is disabled
func (f *ClassifierFactory) CreateURLClassifier() (core.URLClassifier, error) {
	urlCfg := f.cfg.GetURLClassifier()
	if !urlCfg.Enabled {
		return nil, nil
	}

	var classifier core.URLClassifier
	switch urlCfg.Provider {
	case "linear":
		m, err := linear.LoadURLModel(urlCfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("%w: URL classifier linear: %w", core.ErrCollaboratorUnavailable, err)
		}
		classifier = m
	case "onnx":
		onnxCfg := f.cfg.GetONNX()
		c, err := onnx.NewURLClassifier(onnx.Options{
			ModelPath:         urlCfg.ModelPath,
			SharedLibraryPath: onnxCfg.SharedLibraryPath,
			InputName:         onnxCfg.InputName,
			OutputName:        onnxCfg.OutputName,
			IntraOpThreads:    onnxCfg.IntraOpThreads,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: URL classifier onnx: %w", core.ErrCollaboratorUnavailable, err)
		}
		f.closers = append(f.closers, c.Close)
		classifier = c
	default:
		return nil, fmt.Errorf("unsupported URL classifier provider: %s", urlCfg.Provider)
	}

	f.logger.Info("Created URL classifier", zap.String("provider", urlCfg.Provider))
	if breakerCfg := f.cfg.GetBreaker(); breakerCfg.Enabled {
		classifier = resilience.NewBreakerURLClassifier(classifier, "url-"+urlCfg.Provider, breakerSettings(breakerCfg), f.logger)
	}
	return classifier, nil
}

// CreateExplainer creates the occlusion explainer
func (f *ClassifierFactory) CreateExplainer() core.Explainer {
	return explain.NewOcclusionExplainer(f.cfg.GetExplainer().MaxCandidates, f.logger)
}

// Close releases model sessions and API clients
func (f *ClassifierFactory) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

func breakerSettings(c config.BreakerConfig) resilience.BreakerSettings {
	s := resilience.DefaultBreakerSettings()
	if c.MaxRequests > 0 {
		s.MaxRequests = c.MaxRequests
	}
	if c.Interval > 0 {
		s.Interval = c.Interval
	}
	if c.Timeout > 0 {
		s.Timeout = c.Timeout
	}
	if c.ConsecutiveFailures > 0 {
		s.ConsecutiveFailures = c.ConsecutiveFailures
	}
	if c.MinRequests > 0 {
		s.MinRequests = c.MinRequests
	}
	if c.FailureRatio > 0 {
		s.FailureRatio = c.FailureRatio
	}
	return s
}

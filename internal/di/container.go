package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/factory"
	"github.com/mikey/phish-scorer/internal/logging"
	"github.com/mikey/phish-scorer/internal/metrics"
	"github.com/mikey/phish-scorer/internal/ports"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
	"github.com/mikey/phish-scorer/internal/utils"
	"github.com/mikey/phish-scorer/internal/whitelist"
)

// StoreStopper releases the verdict store
type StoreStopper func()

// BuildContainer creates the daemon container. configFile may be empty to
// search the standard locations.
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewWithFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics with process collectors
	if err := container.Provide(func() *metrics.Metrics {
		return metrics.New(true)
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// providePipeline registers everything from the classifiers up to the
// scorer. Config, logger and metrics must already be provided.
func providePipeline(container *dig.Container) error {
	providers := []interface{}{
		utils.NewTextProcessor,
		factory.NewClassifierFactory,
		factory.NewStoreFactory,
		factory.NewFilterFactory,

		func(f *factory.ClassifierFactory) (core.BodyClassifier, error) {
			return f.CreateBodyClassifier(context.Background())
		},
		func(f *factory.ClassifierFactory) (core.URLClassifier, error) {
			return f.CreateURLClassifier()
		},
		func(f *factory.ClassifierFactory) core.Explainer {
			return f.CreateExplainer()
		},

		func(logger *zap.Logger, m *metrics.Metrics) *urlfeatures.Featurizer {
			return urlfeatures.NewFeaturizer(logger, m.URLParseFailures)
		},

		func(cfg *config.Config) core.Settings {
			return core.Settings{
				URLChannelEnabled:  cfg.GetURLClassifier().Enabled,
				DefaultNumFeatures: cfg.GetExplainer().NumFeatures,
				Threshold:          cfg.GetPhishing().Threshold,
			}
		},
		core.NewPhishingService,

		func(f *factory.StoreFactory) (core.VerdictRepository, StoreStopper, error) {
			repo, stop, err := f.CreateVerdictStore(context.Background())
			return repo, StoreStopper(stop), err
		},

		func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
			return whitelist.NewChecker(cfg.GetPhishing().WhitelistedDomains, logger)
		},

		func(
			service *core.PhishingService,
			checker *whitelist.Checker,
			repo core.VerdictRepository,
			m *metrics.Metrics,
			cfg *config.Config,
			logger *zap.Logger,
		) *filter.Scorer {
			return filter.NewScorer(service, checker, repo, m, cfg.GetStore().Retention, logger)
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

package factory

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/metrics"
	"github.com/mikey/phish-scorer/internal/ports"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	scorer  *filter.Scorer
	metrics *metrics.Metrics
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, scorer *filter.Scorer, m *metrics.Metrics) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		scorer:  scorer,
		metrics: m,
	}
}

// CreateEmailFilter creates the filter named by server.filter_type
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()
	numFeatures := f.cfg.GetExplainer().NumFeatures

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.scorer, f.logger, serverCfg, f.cfg.GetPostfix(), numFeatures), nil
	case "http":
		var registry *prometheus.Registry
		if f.metrics != nil {
			registry = f.metrics.Registry
		}
		return filter.NewHTTPFilter(f.scorer, f.logger, serverCfg.ListenAddress, f.cfg.GetHTTP(), registry, numFeatures), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}

// CreateCliFilter creates the one-shot CLI filter
func (f *FilterFactory) CreateCliFilter(out io.Writer, verbose, jsonOutput bool) *filter.CliFilter {
	return filter.NewCliFilter(f.scorer, f.logger, out, verbose, jsonOutput, f.cfg.GetExplainer().NumFeatures)
}

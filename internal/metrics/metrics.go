package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mikey/phish-scorer/internal/core"
)

// Classification outcomes
const (
	OutcomePhishing    = "phishing"
	OutcomeBenign      = "benign"
	OutcomeError       = "error"
	OutcomeWhitelisted = "whitelisted"
)

// Metrics holds the service collectors
type Metrics struct {
	Registry           *prometheus.Registry
	URLParseFailures   prometheus.Counter
	Classifications    *prometheus.CounterVec
	OverallProbability prometheus.Histogram
	URLsPerEmail       prometheus.Histogram
}

// New registers the collectors on a fresh registry. Process and Go runtime
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		URLParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phish_scorer_url_parse_failures_total",
			Help: "Total number of URL feature fields defaulted after a parse failure",
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phish_scorer_classifications_total",
			Help: "Total number of classified emails by outcome",
		}, []string{"outcome"}),
		OverallProbability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phish_scorer_overall_probability",
			Help:    "Distribution of the fused phishing probability",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		URLsPerEmail: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phish_scorer_urls_per_email",
			Help:    "Number of URLs extracted per email",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
	}

	m.Registry.MustRegister(m.URLParseFailures, m.Classifications, m.OverallProbability, m.URLsPerEmail)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// ObserveResult records a completed classification
func (m *Metrics) ObserveResult(result *core.FusedResult) {
	outcome := OutcomeBenign
	if result.IsPhishing {
		outcome = OutcomePhishing
	}
	m.Classifications.WithLabelValues(outcome).Inc()
	m.OverallProbability.Observe(result.OverallProbability)
	m.URLsPerEmail.Observe(float64(len(result.URLs)))
}

// ObserveError records a failed classification
func (m *Metrics) ObserveError() {
	m.Classifications.WithLabelValues(OutcomeError).Inc()
}

// ObserveWhitelisted records an email that bypassed scoring
func (m *Metrics) ObserveWhitelisted() {
	m.Classifications.WithLabelValues(OutcomeWhitelisted).Inc()
}

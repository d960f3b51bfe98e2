package urlfeatures

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Featurizer computes URL feature vectors. Parse failures never abort; the
// affected field is 0 and the failure is counted.
type Featurizer struct {
	logger   *zap.Logger
	failures prometheus.Counter
}

// NewFeaturizer creates a featurizer. failures may be nil.
func NewFeaturizer(logger *zap.Logger, failures prometheus.Counter) *Featurizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Featurizer{
		logger:   logger,
		failures: failures,
	}
}

// Features returns the vector for rawURL and the number of fields that fell
// back to 0 because the URL could not be parsed
func (f *Featurizer) Features(rawURL string) (Vector, int) {
	v := Vector{
		Entropy:      Entropy(rawURL),
		NumDigits:    countDigits(rawURL),
		URLLength:    utf8.RuneCountInString(rawURL),
		NumFragments: strings.Count(rawURL, "#"),
		NumPercent20: strings.Count(rawURL, "%20"),
		NumAt:        strings.Count(rawURL, "@"),
	}
	if strings.Contains(rawURL, "http:") {
		v.HasHTTP = 1
	}
	if strings.Contains(rawURL, "https:") {
		v.HasHTTPS = 1
	}

	parts, err := splitURL(rawURL)
	if err != nil {
		// numParams and numSubDomains both read the split authority
		f.recordFailure(rawURL, err, 2)
		return v, 2
	}
	v.NumParams = f.numParams(rawURL, parts.query)
	v.NumSubDomains = numSubDomains(parts.hostname())
	return v, 0
}

func (f *Featurizer) recordFailure(rawURL string, err error, fields int) {
	f.logger.Debug("Failed to parse URL for features",
		zap.String("url", rawURL),
		zap.Int("fields", fields),
		zap.Error(err))
	if f.failures != nil {
		f.failures.Add(float64(fields))
	}
}

// Entropy is the base-2 Shannon entropy of the character distribution of
// the trimmed URL
func Entropy(rawURL string) float64 {
	s := strings.TrimSpace(rawURL)
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}

	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}

	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// numParams counts distinct query keys that carry a value; blank values are
// dropped like a non-strict query parser does
func (f *Featurizer) numParams(rawURL, query string) int {
	if query == "" {
		return 0
	}
	keys, malformed := queryKeys(query)
	if malformed > 0 {
		f.logger.Debug("Kept malformed escapes in URL query",
			zap.String("url", rawURL),
			zap.Int("escapes", malformed))
	}
	return len(keys)
}

func numSubDomains(host string) int {
	if host == "" {
		return 0
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return 0
	}
	return len(labels) - 2
}

package core

import (
	"time"

	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// Class indexes of a probability row
const (
	ClassBenign   = 0
	ClassPhishing = 1
)

// Email represents an email message
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// ClassProbabilities is one classifier output row: [P(benign), P(phishing)]
type ClassProbabilities [2]float64

// Benign returns P(benign)
func (p ClassProbabilities) Benign() float64 { return p[ClassBenign] }

// Phishing returns P(phishing)
func (p ClassProbabilities) Phishing() float64 { return p[ClassPhishing] }

// PredictedClass returns the argmax class, benign on ties
func (p ClassProbabilities) PredictedClass() int {
	if p[ClassPhishing] > p[ClassBenign] {
		return ClassPhishing
	}
	return ClassBenign
}

// Confidence returns the larger of the two probabilities
func (p ClassProbabilities) Confidence() float64 {
	if p[ClassPhishing] > p[ClassBenign] {
		return p[ClassPhishing]
	}
	return p[ClassBenign]
}

// FromPhishing builds a row from P(phishing)
func FromPhishing(p float64) ClassProbabilities {
	return ClassProbabilities{1 - p, p}
}

// TokenWeight is one explanation entry
type TokenWeight struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
}

// PreparedEmail holds the deterministic features derived from an email
type PreparedEmail struct {
	Normalized    string
	URLs          []string
	Features      []urlfeatures.Vector
	ParseFailures int
}

// URLResult is the prediction for one extracted URL
type URLResult struct {
	URL                 string             `json:"url"`
	Features            urlfeatures.Vector `json:"features"`
	PredictedClass      int                `json:"predicted_class"`
	PhishingProbability float64            `json:"phishing_probability"`
	BenignProbability   float64            `json:"benign_probability"`
	Confidence          float64            `json:"confidence"`
}

// FusedResult is the outcome of classifying one email
type FusedResult struct {
	RequestID             string             `json:"request_id"`
	OverallProbability    float64            `json:"overall_probability"`
	BodyProbability       float64            `json:"body_probability"`
	URLAverageProbability *float64           `json:"url_average_probability"`
	BodyPredictedClass    int                `json:"predicted_class"`
	BodyConfidence        float64            `json:"confidence"`
	IsPhishing            bool               `json:"is_phishing"`
	Whitelisted           bool               `json:"whitelisted,omitempty"`
	URLs                  []string           `json:"urls"`
	URLResults            []URLResult        `json:"url_results"`
	Importance            map[string]float64 `json:"list"`
	URLParseFailures      int                `json:"url_parse_failures"`
	AnalyzedAt            time.Time          `json:"analyzed_at"`
}

// Verdict is the audit record kept by host filters for a classification
type Verdict struct {
	ID                    string
	OverallProbability    float64
	BodyProbability       float64
	URLAverageProbability *float64
	PredictedClass        int
	IsPhishing            bool
	URLCount              int
	AnalyzedAt            time.Time
	ExpiresAt             time.Time
}

// NewVerdict summarises a result for storage
func NewVerdict(result *FusedResult, ttl time.Duration) *Verdict {
	return &Verdict{
		ID:                    result.RequestID,
		OverallProbability:    result.OverallProbability,
		BodyProbability:       result.BodyProbability,
		URLAverageProbability: result.URLAverageProbability,
		PredictedClass:        result.BodyPredictedClass,
		IsPhishing:            result.IsPhishing,
		URLCount:              len(result.URLs),
		AnalyzedAt:            result.AnalyzedAt,
		ExpiresAt:             result.AnalyzedAt.Add(ttl),
	}
}

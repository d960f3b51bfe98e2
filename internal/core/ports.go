package core

import (
	"context"

	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// BodyClassifier scores normalised email bodies
type BodyClassifier interface {
	// PredictProba returns one row per input text, in input order
	PredictProba(ctx context.Context, texts []string) ([]ClassProbabilities, error)
}

// URLClassifier scores URL feature vectors
type URLClassifier interface {
	// PredictProba returns one row per input vector, in input order
	PredictProba(ctx context.Context, features []urlfeatures.Vector) ([]ClassProbabilities, error)
}

// PredictFunc is the body scoring callback handed to an Explainer
type PredictFunc func(ctx context.Context, texts []string) ([]ClassProbabilities, error)

// Explainer attributes a body score to its tokens
type Explainer interface {
	// Explain returns at most numFeatures token weights; positive weights
	// push toward the phishing class
	Explain(ctx context.Context, text string, predict PredictFunc, numFeatures int) ([]TokenWeight, error)
}

// VerdictRepository stores classification verdicts for later lookup
type VerdictRepository interface {
	// Save stores a verdict
	Save(ctx context.Context, verdict *Verdict) error

	// Get retrieves a verdict by request id
	Get(ctx context.Context, id string) (*Verdict, error)

	// Delete removes a verdict
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired verdicts
	Cleanup(ctx context.Context) error
}

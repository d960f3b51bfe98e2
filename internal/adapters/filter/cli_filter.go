package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
)

// CliFilter scores a single message and writes the result to out
type CliFilter struct {
	scorer      *Scorer
	logger      *zap.Logger
	out         io.Writer
	verbose     bool
	jsonOutput  bool
	numFeatures int
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(scorer *Scorer, logger *zap.Logger, out io.Writer, verbose, jsonOutput bool, numFeatures int) *CliFilter {
	return &CliFilter{
		scorer:      scorer,
		logger:      logger,
		out:         out,
		verbose:     verbose,
		jsonOutput:  jsonOutput,
		numFeatures: numFeatures,
	}
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	start := time.Now()
	result, err := f.scorer.Score(ctx, email, f.numFeatures)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(start)

	if f.jsonOutput {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		return result, nil
	}

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %v\n", email.To)
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))
	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Request ID: %s\n", result.RequestID)
	fmt.Fprintf(f.out, "Is phishing: %t\n", result.IsPhishing)
	if result.Whitelisted {
		fmt.Fprintf(f.out, "Whitelisted sender: true\n")
	}
	fmt.Fprintf(f.out, "Overall probability: %.4f\n", result.OverallProbability)
	fmt.Fprintf(f.out, "Body probability: %.4f\n", result.BodyProbability)
	if result.URLAverageProbability != nil {
		fmt.Fprintf(f.out, "URL average probability: %.4f\n", *result.URLAverageProbability)
	}
	fmt.Fprintf(f.out, "Body class: %d (confidence %.4f)\n", result.BodyPredictedClass, result.BodyConfidence)

	if len(result.URLResults) > 0 {
		fmt.Fprintf(f.out, "\nURLs:\n")
		for _, u := range result.URLResults {
			fmt.Fprintf(f.out, "  %s  phishing=%.4f\n", u.URL, u.PhishingProbability)
		}
	}
	if result.URLParseFailures > 0 {
		fmt.Fprintf(f.out, "URL parse failures: %d\n", result.URLParseFailures)
	}

	if len(result.Importance) > 0 {
		fmt.Fprintf(f.out, "\nToken importance:\n")
		tokens := make([]string, 0, len(result.Importance))
		for t := range result.Importance {
			tokens = append(tokens, t)
		}
		sort.Slice(tokens, func(i, j int) bool {
			return result.Importance[tokens[i]] > result.Importance[tokens[j]]
		})
		for _, t := range tokens {
			fmt.Fprintf(f.out, "  %-20s %+.4f\n", t, result.Importance[t])
		}
	}
	fmt.Fprintf(f.out, "\nProcessing time: %v\n", duration)

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PhishingPrompt is the instruction sent to LLM body classifiers. The body
// has already been normalised, so placeholders stand in for amounts, dates
// and links.
const PhishingPrompt = `You are a phishing detection system. Estimate how likely the following email body is a phishing attempt.
Placeholders such as <cur>, <date>, <time>, <day>, <phone>, <perc>, <num> and <url> replace the original values.
Respond with a JSON object containing:
- phishing_probability: number between 0 and 1 (higher means more likely phishing)

Email body:
%s

Respond only with the JSON object and nothing else.`

// SystemPrompt is the system role message for chat style providers
const SystemPrompt = "You are a phishing detection system. Respond only with JSON."

// ErrNoJSON is returned when a model reply holds no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

// PhishingResponse is the JSON reply expected from an LLM
type PhishingResponse struct {
	PhishingProbability *float64 `json:"phishing_probability"`
}

// BuildPhishingPrompt renders the prompt for one normalised body
func BuildPhishingPrompt(body string) string {
	return fmt.Sprintf(PhishingPrompt, body)
}

// ExtractJSON returns the outermost {...} span of text
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParsePhishingProbability reads phishing_probability from a model reply,
// tolerating prose or code fences around the JSON, and clamps it to [0, 1]
func ParsePhishingProbability(text string) (float64, error) {
	var resp PhishingResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		raw, extractErr := ExtractJSON(text)
		if extractErr != nil {
			return 0, fmt.Errorf("failed to extract JSON from LLM response: %w", extractErr)
		}
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return 0, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}
	if resp.PhishingProbability == nil {
		return 0, fmt.Errorf("LLM response has no phishing_probability")
	}

	p := *resp.PhishingProbability
	if math.IsNaN(p) {
		return 0, fmt.Errorf("LLM response phishing_probability is NaN")
	}
	return math.Max(0, math.Min(1, p)), nil
}

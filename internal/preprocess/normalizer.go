package preprocess

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// CategoryNormalizer rewrites volatile entities into placeholder tokens
type CategoryNormalizer struct {
	rules []Rule
}

// NewCategoryNormalizer creates a normalizer over the built-in ordered rules
func NewCategoryNormalizer() *CategoryNormalizer {
	return &CategoryNormalizer{rules: categoryRules}
}

// ReplaceCategories applies every rule in order without lowercasing
func (n *CategoryNormalizer) ReplaceCategories(text string) string {
	out := text
	for _, rule := range n.rules {
		out = replaceAll(rule.Pattern, out, rule.Placeholder)
	}
	return out
}

// Normalize replaces categories and lowercases the result
func (n *CategoryNormalizer) Normalize(text string) string {
	if text == "" {
		return text
	}
	return strings.ToLower(n.ReplaceCategories(text))
}

// replaceAll substitutes every non-overlapping match. regexp2 only fails on
// a match timeout and none is configured, so an error leaves text as is.
func replaceAll(re *regexp2.Regexp, text, placeholder string) string {
	out, err := re.Replace(text, escapeReplacement(placeholder), -1, -1)
	if err != nil {
		return text
	}
	return out
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// findAll returns every match of re in text, left to right
func findAll(re *regexp2.Regexp, text string) []string {
	var matches []string
	m, err := re.FindStringMatch(text)
	for err == nil && m != nil {
		matches = append(matches, m.String())
		m, err = re.FindNextMatch(m)
	}
	return matches
}

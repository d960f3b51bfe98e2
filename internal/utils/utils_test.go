package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "no limit", tp.TruncateText("no limit", 0))
	assert.Equal(t, "abc"+TruncationMarker, tp.TruncateText("abcdef", 3))

	// "é" is two bytes; cutting inside it backs off to the rune start
	got := tp.TruncateText("aé", 2)
	assert.Equal(t, "a"+TruncationMarker, got)
	assert.True(t, utf8.ValidString(got))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid ö", tp.SanitizeUTF8("valid ö"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "ab"+TruncationMarker, tp.ProcessText("a\xffbcd", 2))
}

func TestParsePhishingProbability(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "plain", in: `{"phishing_probability": 0.83}`, want: 0.83},
		{name: "fenced", in: "```json\n{\"phishing_probability\": 0.2}\n```", want: 0.2},
		{name: "prose", in: `Sure. {"phishing_probability": 1} Hope that helps.`, want: 1},
		{name: "clamped high", in: `{"phishing_probability": 7}`, want: 1},
		{name: "clamped low", in: `{"phishing_probability": -0.5}`, want: 0},
		{name: "zero", in: `{"phishing_probability": 0}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePhishingProbability(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParsePhishingProbability_Errors(t *testing.T) {
	_, err := ParsePhishingProbability("I cannot answer that")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParsePhishingProbability(`{"score": 0.4}`)
	assert.ErrorContains(t, err, "phishing_probability")

	_, err = ParsePhishingProbability(`{"phishing_probability": }`)
	assert.Error(t, err)
}

func TestBuildPhishingPrompt(t *testing.T) {
	prompt := BuildPhishingPrompt("pay <cur> now")
	assert.True(t, strings.Contains(prompt, "Email body:\npay <cur> now\n"))
}

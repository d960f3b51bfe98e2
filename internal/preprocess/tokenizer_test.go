package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"placeholders stay whole", "pay <cur> by <date>, visit <url>", []string{"pay", "<cur>", "by", "<date>", ",", "visit", "<url>"}},
		{"punctuation split", "click here!", []string{"click", "here", "!"}},
		{"lone angle bracket", "a < b", []string{"a", "<", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

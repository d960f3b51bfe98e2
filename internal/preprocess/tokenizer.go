package preprocess

import (
	"github.com/dlclark/regexp2"
)

// Bracketed placeholders stay whole; otherwise words or single symbols.
var tokenRegexp = regexp2.MustCompile(`<[^<>\s]+>|\w+|[^\s\w]`, regexp2.None)

// Tokenize splits text into explanation tokens
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return findAll(tokenRegexp, text)
}

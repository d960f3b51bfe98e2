package preprocess

// ExtractURLs returns every URL in text in order of discovery, duplicates kept
func ExtractURLs(text string) []string {
	if text == "" {
		return []string{}
	}
	urls := findAll(urlRegexp, text)
	if urls == nil {
		return []string{}
	}
	return urls
}

// StripURLs replaces every URL in text with the URL placeholder
func StripURLs(text string) string {
	if text == "" {
		return text
	}
	return replaceAll(urlRegexp, text, URLToken)
}

// ExtractAndStrip collects the URLs of text and returns it with each one
// replaced by the URL placeholder
func ExtractAndStrip(text string) ([]string, string) {
	return ExtractURLs(text), StripURLs(text)
}

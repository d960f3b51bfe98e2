package preprocess

import (
	"github.com/dlclark/regexp2"
)

// Placeholder tokens substituted for matched entities. They match the
// vocabulary the body classifiers were trained on.
const (
	CurrencyToken   = "<cur>"
	TimeToken       = "<time>"
	DayToken        = "<day>"
	DateToken       = "<date>"
	PhoneToken      = "<phone>"
	PercentageToken = "<perc>"
	NumberToken     = "<num>"
	URLToken        = "<URL>"
)

// Rule is one pattern -> placeholder substitution
type Rule struct {
	Name        string
	Pattern     *regexp2.Regexp
	Placeholder string
}

const (
	currencyPattern = `[$\u20AC\u00A3\u00A5]\s*\d+(?:[.,]\d+)?|\d+(?:[.,]\d+)?\s*(?:USD|EUR|GBP|JPY|CAD|AUD|CHF)`

	timePattern = `\b(?:[01]?\d|2[0-3]):[0-5]\d(?::[0-5]\d)?(?:\s*[aApP][mM])?\b`

	// The leading and trailing space are part of the match.
	dayPattern = `(?i) (sun|mon|tue(s)?|wed(nesday)?|thu(r(s)?)?|fri)(day|\.)? `

	datePattern = `(?i)\b(?:\d{1,2}[-\/\.]\d{1,2}[-\/\.]\d{2,4}` +
		`|\d{4}[-\/\.]\d{1,2}[-\/\.]\d{1,2}` +
		`|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}(?:[a-z]{2})?,?\s+\d{2,4}` +
		`|\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*,?\s+\d{2,4}` +
		`|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}(?:\s?[\u2014-]\s?\d{1,2})?)\b`

	// Anchored to the whole input: phone numbers inside longer text are left alone.
	phonePattern = `^(\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}$`

	percentagePattern = `\b(?<!\.)(?!0+(?:\.0+)?%)(?:\d|[1-9]\d|100)(?:(?<!100)\.\d+)?%`

	numberPattern = `\b\d+(?:[.,]\d+)?\b`

	urlPattern = `http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`
)

// categoryRules is applied in order. A bare number rule would eat the digits
// of dates, times and amounts if it ran earlier.
var categoryRules = []Rule{
	{Name: "currency", Pattern: regexp2.MustCompile(currencyPattern, regexp2.None), Placeholder: CurrencyToken},
	{Name: "time", Pattern: regexp2.MustCompile(timePattern, regexp2.None), Placeholder: TimeToken},
	{Name: "day", Pattern: regexp2.MustCompile(dayPattern, regexp2.None), Placeholder: DayToken},
	{Name: "date", Pattern: regexp2.MustCompile(datePattern, regexp2.None), Placeholder: DateToken},
	{Name: "phone", Pattern: regexp2.MustCompile(phonePattern, regexp2.None), Placeholder: PhoneToken},
	{Name: "percentage", Pattern: regexp2.MustCompile(percentagePattern, regexp2.None), Placeholder: PercentageToken},
	{Name: "number", Pattern: regexp2.MustCompile(numberPattern, regexp2.None), Placeholder: NumberToken},
}

var urlRegexp = regexp2.MustCompile(urlPattern, regexp2.None)

// Rules returns a copy of the ordered category rules
func Rules() []Rule {
	out := make([]Rule, len(categoryRules))
	copy(out, categoryRules)
	return out
}

package stages

import "regexp"

// Content types form a closed set, resolved once at outline time and
// threaded forward on the article row rather than re-inferred per stage.
const (
	TypeGuide      = "guide"
	TypeComparison = "comparison"
	TypeCalculator = "calculator"
	TypeListicle   = "listicle"
	TypeReview     = "review"
	TypeHowTo      = "howto"
)

// typeRule pairs a content type with its keyword pattern. Word boundaries
// keep substrings from firing ("Elvis" must not classify as a comparison
// through "vs"). First match wins, so more specific rules come first.
type typeRule struct {
	contentType string
	pattern     *regexp.Regexp
}

var typeRules = []typeRule{
	{TypeCalculator, regexp.MustCompile(`(?i)\b(calculator|calculate|estimator|estimate)\b|\bhow (much|many)\b`)},
	{TypeComparison, regexp.MustCompile(`(?i)\b(vs|versus|compared|comparison|difference between)\b`)},
	{TypeHowTo, regexp.MustCompile(`(?i)\bhow to\b`)},
	{TypeReview, regexp.MustCompile(`(?i)\b(review|reviews|reviewed)\b`)},
	{TypeListicle, regexp.MustCompile(`(?i)^\d+\s|\b(best|top \d+|top ten)\b`)},
}

// ClassifyContentType maps a target keyword onto the closed content-type
// set. Unmatched keywords default to a long-form guide.
func ClassifyContentType(keyword string) string {
	for _, rule := range typeRules {
		if rule.pattern.MatchString(keyword) {
			return rule.contentType
		}
	}
	return TypeGuide
}

// wordTarget returns the word-count goal for a content type. Calculators
// are tool pages with little prose; everything else is long form and at
// least the configured minimum.
func wordTarget(contentType string, minWords int) int {
	targets := map[string]int{
		TypeGuide:      1800,
		TypeComparison: 1500,
		TypeListicle:   1400,
		TypeReview:     1300,
		TypeHowTo:      1200,
		TypeCalculator: 500,
	}
	target := targets[contentType]
	if contentType != TypeCalculator && target < minWords {
		target = minWords
	}
	return target
}

// shortFormType reports whether a content type is exempt from the
// minimum-word-count gate.
func shortFormType(contentType string) bool {
	return contentType == TypeCalculator
}

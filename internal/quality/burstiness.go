package quality

import (
	"math"
	"regexp"
	"strings"
)

// PassThreshold is the minimum burstiness score considered human-like.
const PassThreshold = 0.35

// minSentences is the signal floor: fewer qualifying sentences than this
// and the check trivially passes.
const minSentences = 5

// periodProtector marks periods that do not end a sentence so the
// splitter ignores them: decimals, ellipses, URLs, dotted acronyms and
// common abbreviations.
const protected = '\x00'

var protectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\.\d+`),                  // decimals
	regexp.MustCompile(`\.{3}`),                     // ellipses
	regexp.MustCompile(`https?://\S+`),              // URLs
	regexp.MustCompile(`\b(?:[A-Za-z]\.){2,}`),      // dotted acronyms: U.S., a.m.
	regexp.MustCompile(`(?i)\b(?:mr|mrs|ms|dr|st|vs|etc|inc|ltd|approx|est|no)\.`), // abbreviations
	regexp.MustCompile(`(?i)\b(?:e\.g|i\.e)\.`),     // latin abbreviations
}

// BurstinessScore holds the sentence-length variance result.
type BurstinessScore struct {
	Score     float64
	Sentences int
	Pass      bool
}

// Burstiness computes stdDev/mean of sentence word counts over the prose
// of a markdown body. It is a proxy for human-like sentence-length
// variance, not a semantic check.
func Burstiness(body string) BurstinessScore {
	prose := ExtractProse(body)
	sentences := splitSentences(prose)

	if len(sentences) < minSentences {
		return BurstinessScore{Sentences: len(sentences), Pass: true}
	}

	lengths := make([]float64, len(sentences))
	var sum float64
	for i, s := range sentences {
		lengths[i] = float64(len(strings.Fields(s)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return BurstinessScore{Sentences: len(sentences), Pass: true}
	}

	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	score := math.Sqrt(variance) / mean
	return BurstinessScore{
		Score:     score,
		Sentences: len(sentences),
		Pass:      score >= PassThreshold,
	}
}

// splitSentences splits prose on [.!?] followed by whitespace and a
// capital letter, after protecting non-sentence-ending periods.
func splitSentences(prose string) []string {
	masked := prose
	for _, re := range protectPatterns {
		masked = re.ReplaceAllStringFunc(masked, func(m string) string {
			return strings.ReplaceAll(m, ".", string(protected))
		})
	}

	runes := []rune(masked)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Consume a run of terminators, then require whitespace + capital.
		j := i
		for j+1 < len(runes) && (runes[j+1] == '.' || runes[j+1] == '!' || runes[j+1] == '?') {
			j++
		}
		k := j + 1
		for k < len(runes) && (runes[k] == ' ' || runes[k] == '\t' || runes[k] == '\n') {
			k++
		}
		if k == j+1 || k >= len(runes) || !isUpper(runes[k]) {
			i = j
			continue
		}
		sentences = append(sentences, restore(string(runes[start:j+1])))
		start = k
		i = k - 1
	}
	if tail := strings.TrimSpace(restore(string(runes[start:]))); tail != "" {
		sentences = append(sentences, tail)
	}

	var qualifying []string
	for _, s := range sentences {
		if len(strings.Fields(s)) > 0 {
			qualifying = append(qualifying, strings.TrimSpace(s))
		}
	}
	return qualifying
}

func restore(s string) string {
	return strings.ReplaceAll(s, string(protected), ".")
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

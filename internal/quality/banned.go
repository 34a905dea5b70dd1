package quality

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation categories.
const (
	CategoryWord   = "ai_word"
	CategoryPhrase = "transition_phrase"
	CategoryDash   = "dash_variant"
)

// Violation is one banned-pattern hit, precise enough to build a targeted
// re-humanization instruction from.
type Violation struct {
	Pattern  string
	Line     int
	Category string
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d: %s (%s)", v.Line, v.Pattern, v.Category)
}

// bannedWords are single "AI fingerprint" words matched on word
// boundaries so that e.g. "delves" inside a larger word doesn't fire.
var bannedWords = []string{
	"delve", "delves", "delving",
	"tapestry",
	"unleash", "unleashing",
	"elevate", "elevating",
	"embark", "embarking",
	"realm",
	"testament",
	"pivotal",
	"foster", "fostering",
	"seamless", "seamlessly",
	"robust",
	"furthermore",
	"moreover",
	"additionally",
	"landscape",
	"crucial",
	"supercharge",
	"game-changer",
	"revolutionize",
}

// bannedPhrases are overused transition phrases matched as substrings.
var bannedPhrases = []string{
	"in conclusion",
	"in today's fast-paced world",
	"in the ever-evolving",
	"it's important to note",
	"it is important to note",
	"it's worth noting",
	"when it comes to",
	"at the end of the day",
	"let's dive in",
	"dive into",
	"a deep dive",
	"look no further",
	"without further ado",
	"the world of",
	"whether you're a",
	"on the other hand",
	"that being said",
	"needless to say",
}

var wordPatterns []*regexp.Regexp

// dashVariants matches em/en/figure/horizontal-bar dashes that the
// sanitation step should have collapsed already.
var dashVariants = regexp.MustCompile("[‒–—―]")

func init() {
	wordPatterns = make([]*regexp.Regexp, len(bannedWords))
	for i, w := range bannedWords {
		wordPatterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
}

// ScanBanned returns every banned-pattern violation in the body with its
// line number.
func ScanBanned(body string) []Violation {
	var violations []Violation

	for lineNo, line := range strings.Split(body, "\n") {
		for i, re := range wordPatterns {
			if re.MatchString(line) {
				violations = append(violations, Violation{
					Pattern:  bannedWords[i],
					Line:     lineNo + 1,
					Category: CategoryWord,
				})
			}
		}

		lower := strings.ToLower(line)
		for _, phrase := range bannedPhrases {
			if strings.Contains(lower, phrase) {
				violations = append(violations, Violation{
					Pattern:  phrase,
					Line:     lineNo + 1,
					Category: CategoryPhrase,
				})
			}
		}

		if dashVariants.MatchString(line) {
			violations = append(violations, Violation{
				Pattern:  "em/en dash",
				Line:     lineNo + 1,
				Category: CategoryDash,
			})
		}
	}

	return violations
}

// RewriteInstruction builds a targeted instruction from violations for
// the humanize stage's corrective pass.
func RewriteInstruction(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}

	seen := make(map[string]bool)
	var patterns []string
	for _, v := range violations {
		if v.Category == CategoryDash || seen[v.Pattern] {
			continue
		}
		seen[v.Pattern] = true
		patterns = append(patterns, v.Pattern)
	}
	if len(patterns) == 0 {
		return ""
	}
	return "Remove or replace these words and phrases, which read as machine-written: " +
		strings.Join(patterns, ", ") + "."
}

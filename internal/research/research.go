package research

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

// Cache statuses returned by Lookup.
const (
	StatusHit     = "hit"     // served from fresh cache entries
	StatusPartial = "partial" // cache missed, live provider answered
	StatusMiss    = "miss"    // nothing available; refresh job enqueued
)

// Source is one reference backing a research finding.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Data is the structured research payload consumed by the outline and
// draft stages.
type Data struct {
	Statistics       []string `json:"statistics"`
	Quotes           []string `json:"quotes"`
	CompetitorAngles []string `json:"competitor_angles"`
	Sources          []Source `json:"sources"`
}

// Empty reports whether the payload carries no findings at all.
func (d *Data) Empty() bool {
	return len(d.Statistics) == 0 && len(d.Quotes) == 0 &&
		len(d.CompetitorAngles) == 0 && len(d.Sources) == 0
}

// Merge appends findings from other, skipping exact duplicates. Order is
// preserved, so merging the same ranked entries always produces the same
// result.
func (d *Data) Merge(other *Data) {
	d.Statistics = appendUnique(d.Statistics, other.Statistics)
	d.Quotes = appendUnique(d.Quotes, other.Quotes)
	d.CompetitorAngles = appendUnique(d.CompetitorAngles, other.CompetitorAngles)
	for _, s := range other.Sources {
		dup := false
		for _, existing := range d.Sources {
			if existing.URL == s.URL {
				dup = true
				break
			}
		}
		if !dup {
			d.Sources = append(d.Sources, s)
		}
	}
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

// Marshal serializes the payload for storage.
func (d *Data) Marshal() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseData deserializes a stored payload.
func ParseData(raw string) (*Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

var queryNonWord = regexp.MustCompile(`[^a-z0-9\s]+`)

// NormalizeQuery lower-cases, strips punctuation and collapses whitespace
// so equivalent queries share a cache key.
func NormalizeQuery(query string) string {
	q := queryNonWord.ReplaceAllString(strings.ToLower(query), " ")
	return strings.Join(strings.Fields(q), " ")
}

// QueryHash returns the cache key for a query.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}

package quality

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
)

// signatureSize is how many top shingles make up a duplicate signature.
const signatureSize = 100

// DuplicateThreshold is the Jaccard similarity above which two articles
// on different domains are flagged. Advisory only, never blocking.
const DuplicateThreshold = 0.4

var nonWord = regexp.MustCompile(`[^a-z0-9\s]+`)

// normalizeTokens lower-cases, strips punctuation and splits into words.
func normalizeTokens(body string) []string {
	return strings.Fields(nonWord.ReplaceAllString(strings.ToLower(body), " "))
}

// Fingerprint returns a stable content hash over normalized tokens.
func Fingerprint(body string) string {
	sum := sha256.Sum256([]byte(strings.Join(normalizeTokens(body), " ")))
	return hex.EncodeToString(sum[:])
}

// Signature builds the compact duplicate-detection signature: the 100
// most frequent 3-word shingles, hashed and sorted ascending. Ties break
// lexicographically so the same text always yields the same signature.
func Signature(body string) []uint64 {
	tokens := normalizeTokens(body)
	if len(tokens) < 3 {
		return nil
	}

	counts := make(map[string]int)
	for i := 0; i+3 <= len(tokens); i++ {
		shingle := tokens[i] + " " + tokens[i+1] + " " + tokens[i+2]
		counts[shingle]++
	}

	shingles := make([]string, 0, len(counts))
	for s := range counts {
		shingles = append(shingles, s)
	}
	sort.Slice(shingles, func(i, j int) bool {
		if counts[shingles[i]] != counts[shingles[j]] {
			return counts[shingles[i]] > counts[shingles[j]]
		}
		return shingles[i] < shingles[j]
	})
	if len(shingles) > signatureSize {
		shingles = shingles[:signatureSize]
	}

	sig := make([]uint64, len(shingles))
	for i, s := range shingles {
		h := fnv.New64a()
		h.Write([]byte(s))
		sig[i] = h.Sum64()
	}
	sort.Slice(sig, func(i, j int) bool { return sig[i] < sig[j] })
	return sig
}

// Jaccard computes intersection/union over two already-sorted signatures
// with a single merge pass.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	var intersection, union int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			union++
			i++
			j++
		case a[i] < b[j]:
			union++
			i++
		default:
			union++
			j++
		}
	}
	union += len(a) - i
	union += len(b) - j

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

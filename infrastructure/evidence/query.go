// Package evidence implements ports.EvidenceProvider backends. Every
// backend reports the provenance of its items through domain.EvidenceMode.
package evidence

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-verity/internal/domain"
)

const (
	// MaxQueryChars bounds the search query built from a text.
	MaxQueryChars = 300
	// minSentenceCut is the shortest prefix a sentence boundary may cut
	// the query to.
	minSentenceCut = 100

	// DefaultMaxResults is used when a provider is configured with no limit.
	DefaultMaxResults = 3

	// DuplicateSimilarity is the Levenshtein similarity at or above which
	// two snippets are treated as the same evidence.
	DuplicateSimilarity = 0.9
)

var foldCaser = cases.Fold()

// BuildQuery derives a search query from the analyzed text: the first
// MaxQueryChars characters, cut back to the last sentence end when that
// end comes after minSentenceCut characters. A sentence ends at '.', '!'
// or '?' followed by whitespace, so dots inside hosts like nasa.gov or
// numbers like 3.5 never cut the query.
func BuildQuery(text string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= MaxQueryChars {
		return string(runes)
	}
	for i := MaxQueryChars - 1; i > minSentenceCut; i-- {
		if isSentenceEnd(runes, i) {
			return string(runes[:i+1])
		}
	}
	return string(runes[:MaxQueryChars])
}

// isSentenceEnd reports whether runes[i] terminates a sentence. Input is
// whitespace-normalized, so the next rune is either a space or nothing.
func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '.', '!', '?':
		return i+1 == len(runes) || runes[i+1] == ' '
	}
	return false
}

// Dedupe drops items whose snippet is a near duplicate of an earlier
// item's snippet and truncates the list to limit. Order is preserved.
func Dedupe(items []domain.EvidenceItem, limit int) []domain.EvidenceItem {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	out := make([]domain.EvidenceItem, 0, min(len(items), limit))
	seen := make([]string, 0, limit)
	for _, item := range items {
		if len(out) == limit {
			break
		}
		key := foldCaser.String(strings.TrimSpace(item.Snippet))
		duplicate := false
		for _, s := range seen {
			if similarity(key, s) >= DuplicateSimilarity {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seen = append(seen, key)
		out = append(out, item)
	}
	return out
}

// similarity is 1 - distance/maxLen over runes.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

package search

import (
	"math"
	"strings"
	"unicode"

	"dentaldir/internal/textutil"
)

const (
	scoreEmptyQuery  = 1
	scoreExact       = 100
	scorePrefix      = 90
	scoreSubstring   = 70
	wordWeight       = 60.0
	subsequenceFull  = 40
	subsequenceScale = 20.0
	// Words are compared against a prefix this many runes longer than the query.
	wordPrefixSlack = 2
)

// Score rates how well label matches query.
func Score(query, label string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	l := strings.ToLower(label)

	switch {
	case q == "":
		return scoreEmptyQuery
	case l == q:
		return scoreExact
	case strings.HasPrefix(l, q):
		return scorePrefix
	case strings.Contains(l, q):
		return scoreSubstring
	}

	qr := []rune(q)
	return max(wordScore(qr, l), subsequenceScore(qr, []rune(l)))
}

// wordScore compares the query against the leading runes of every word in the
// label and keeps the best similarity.
func wordScore(query []rune, label string) int {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		words = []string{""}
	}

	q := string(query)
	best := 0.0
	for _, word := range words {
		wr := []rune(word)
		if limit := len(query) + wordPrefixSlack; len(wr) > limit {
			wr = wr[:limit]
		}
		maxLen := max(len(query), len(wr))
		if maxLen == 0 {
			continue
		}
		dist := textutil.Levenshtein(q, string(wr))
		similarity := (1 - float64(dist)/float64(maxLen)) * wordWeight
		if similarity > best {
			best = similarity
		}
	}
	return int(math.Round(best))
}

// subsequenceScore greedily consumes query runes in order while walking the
// label once.
func subsequenceScore(query, label []rune) int {
	matched := 0
	for _, r := range label {
		if matched < len(query) && r == query[matched] {
			matched++
		}
	}
	if matched == len(query) {
		return subsequenceFull
	}
	return int(math.Round(float64(matched) / float64(len(query)) * subsequenceScale))
}

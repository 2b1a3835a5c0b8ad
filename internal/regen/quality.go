package regen

import (
	"unicode/utf8"

	"dentaldir/internal/store"
	"dentaldir/internal/textutil"
)

// Length bands, in runes, for the meta fields.
const (
	MetaTitleMin       = 30
	MetaTitleMax       = 60
	MetaDescriptionMin = 120
	MetaDescriptionMax = 160
)

// QualityScore rates page content from 0 to 100 starting at 50: meta title
// and description in band add 10 each (over length subtracts 5), an H1 adds
// 10, three or more sections add 10, three or more FAQ entries add 10, and
// 500 and 700 visible words add 5 each.
func QualityScore(content store.PageContent) int {
	score := 50
	score += lengthBand(content.MetaTitle, MetaTitleMin, MetaTitleMax)
	score += lengthBand(content.MetaDescription, MetaDescriptionMin, MetaDescriptionMax)
	if content.H1 != "" {
		score += 10
	}
	if len(content.Sections) >= 3 {
		score += 10
	}
	if len(content.FAQ) >= 3 {
		score += 10
	}
	words := WordCount(content)
	if words >= 500 {
		score += 5
	}
	if words >= 700 {
		score += 5
	}
	return max(0, min(100, score))
}

// WordCount counts visible words across the body, section bodies and FAQ
// answers.
func WordCount(content store.PageContent) int {
	fragments := make([]string, 0, 1+len(content.Sections)+len(content.FAQ))
	fragments = append(fragments, content.Content)
	for _, section := range content.Sections {
		fragments = append(fragments, section.Body)
	}
	for _, faq := range content.FAQ {
		fragments = append(fragments, faq.Answer)
	}
	return textutil.WordCount(fragments...)
}

func lengthBand(value string, lo, hi int) int {
	n := utf8.RuneCountInString(value)
	switch {
	case n > hi:
		return -5
	case n >= lo:
		return 10
	default:
		return 0
	}
}

// Package textutil provides the text helpers shared by search, the
// regenerator and the importer.
//
// The primary use cases are:
//   - Rune aware Levenshtein distance for fuzzy option matching
//   - Parsing directory slugs (state/city/service) and turning slug segments
//     into display names
//   - Counting visible words in HTML content
//   - Token fingerprints and cosine similarity for comparing page revisions
package textutil

// Package search ranks autocomplete options against free-text queries.
//
// Score assigns every label a value in [0, 100] on a fixed ladder: exact
// match 100, prefix 90, substring 70, fuzzy word match up to 60, in-order
// subsequence up to 40. An empty query scores 1 so an unfiltered input still
// lists everything. Rank applies a Policy (threshold and limit) with a stable
// sort so equal scores keep their input order.
//
// Matching is case-insensitive only; diacritics and other Unicode variants
// are compared as-is.
package search

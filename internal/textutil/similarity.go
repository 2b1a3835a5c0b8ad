package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// ContentSimilarity compares the visible text of two HTML fragments. Two
// empty fragments are identical.
func ContentSimilarity(beforeHTML, afterHTML string) float64 {
	before := NewFingerprint(PlainText(beforeHTML))
	after := NewFingerprint(PlainText(afterHTML))
	if before == nil && after == nil {
		return 1
	}
	return CosineSimilarity(before, after)
}

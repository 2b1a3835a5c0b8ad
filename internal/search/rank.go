package search

import (
	"slices"
	"strings"
)

// Option is one selectable autocomplete entry.
type Option struct {
	Value     string `json:"value"`
	Label     string `json:"label"`
	Slug      string `json:"slug,omitempty"`
	StateSlug string `json:"stateSlug,omitempty"`
}

// ScoredOption is an Option annotated with its match score.
type ScoredOption struct {
	Option
	Score int `json:"score"`
}

// Policy holds the ranking cut-offs.
type Policy struct {
	// MinScore excludes options scoring at or below it.
	MinScore int
	// Limit caps the number of results.
	Limit int
}

// DefaultPolicy keeps options scoring above 15 and returns at most 15.
func DefaultPolicy() Policy {
	return Policy{MinScore: 15, Limit: 15}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MinScore < 0 || p.MinScore > 100 {
		p.MinScore = d.MinScore
	}
	if p.Limit <= 0 {
		p.Limit = d.Limit
	}
	return p
}

// Rank scores every option against query, drops those at or below the policy
// threshold, sorts by descending score and truncates to the policy limit.
// Options with equal scores keep their input order. A blank query bypasses
// the threshold and lists the first options at score 1.
func Rank(query string, options []Option, policy Policy) []ScoredOption {
	policy = policy.normalized()
	blank := strings.TrimSpace(query) == ""
	scored := make([]ScoredOption, 0, len(options))
	for _, opt := range options {
		score := Score(query, opt.Label)
		if !blank && score <= policy.MinScore {
			continue
		}
		scored = append(scored, ScoredOption{Option: opt, Score: score})
	}
	slices.SortStableFunc(scored, func(a, b ScoredOption) int {
		return b.Score - a.Score
	})
	if len(scored) > policy.Limit {
		scored = scored[:policy.Limit]
	}
	return scored
}

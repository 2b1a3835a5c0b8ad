package regen

import (
	"fmt"
	"strings"

	"dentaldir/internal/config"
	"dentaldir/internal/services"
	"dentaldir/internal/store"
)

// Word count bounds for generated copy.
const (
	DefaultTargetWordCount = 800
	MinTargetWordCount     = 100
	MaxTargetWordCount     = 5000
)

// Request describes one batch regeneration run.
type Request struct {
	JobID            string                   `json:"job_id"`
	PageIDs          []string                 `json:"page_ids"`
	Config           store.RegenerationConfig `json:"config"`
	ApplyMode        string                   `json:"apply_mode"`
	QualityThreshold int                      `json:"quality_threshold"`
	CustomPrompt     string                   `json:"custom_prompt,omitempty"`
}

// Result summarizes a finished run.
type Result struct {
	JobID      string          `json:"job_id"`
	Status     store.JobStatus `json:"status"`
	Processed  int             `json:"processed"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Errors     []string        `json:"errors"`
}

// Normalize trims identifiers, lower-cases the apply mode and defaults the
// target word count. It returns an ErrValidation error when the request
// cannot run.
func (r *Request) Normalize() error {
	r.JobID = strings.TrimSpace(r.JobID)
	r.ApplyMode = strings.ToLower(strings.TrimSpace(r.ApplyMode))
	r.CustomPrompt = strings.TrimSpace(r.CustomPrompt)

	ids := make([]string, 0, len(r.PageIDs))
	for _, id := range r.PageIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	r.PageIDs = ids

	if r.Config.TargetWordCount == 0 {
		r.Config.TargetWordCount = DefaultTargetWordCount
	}

	switch {
	case len(r.PageIDs) == 0:
		return invalid("page_ids must list at least one page")
	case !r.Config.Any():
		return invalid("config must enable at least one field")
	case r.Config.TargetWordCount < MinTargetWordCount || r.Config.TargetWordCount > MaxTargetWordCount:
		return invalid(fmt.Sprintf("target_word_count must be between %d and %d", MinTargetWordCount, MaxTargetWordCount))
	case r.QualityThreshold < 0 || r.QualityThreshold > 100:
		return invalid("quality_threshold must be between 0 and 100")
	}
	return nil
}

// ShouldApply decides whether generated content goes live. auto_apply always
// applies, quality_gated applies at or above threshold, and every other mode
// is a dry run.
func ShouldApply(mode string, score, threshold int) bool {
	switch mode {
	case config.ApplyModeAuto:
		return true
	case config.ApplyModeQualityGated:
		return score >= threshold
	default:
		return false
	}
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "regen", "validate request", message, nil)
}

package api

import (
	"dentaldir/internal/search"
	"dentaldir/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Function actions accepted by POST /functions/regenerate.
const (
	ActionProcessJob   = "process_job"
	ActionRollbackPage = "rollback_page"
)

// JobRequest starts a regeneration batch. Blank apply mode and a missing
// quality threshold take the configured defaults.
type JobRequest struct {
	JobID            string                   `json:"job_id"`
	PageIDs          []string                 `json:"page_ids"`
	Config           store.RegenerationConfig `json:"config"`
	ApplyMode        string                   `json:"apply_mode"`
	QualityThreshold *int                     `json:"quality_threshold"`
	CustomPrompt     string                   `json:"custom_prompt,omitempty"`
}

// FunctionRequest is the body of POST /functions/regenerate.
type FunctionRequest struct {
	Action string `json:"action"`
	JobRequest
	VersionID string `json:"version_id"`
}

// ProcessJobResponse reports a finished batch.
type ProcessJobResponse struct {
	Success    bool     `json:"success"`
	JobID      string   `json:"job_id"`
	Status     string   `json:"status"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// RollbackResponse reports a restored version.
type RollbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobProgress summarizes counters for pollers.
type JobProgress struct {
	Total      int     `json:"total"`
	Processed  int     `json:"processed"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
}

// Job describes a regeneration job in a transport-friendly format.
type Job struct {
	ID               string                   `json:"id"`
	Status           string                   `json:"status"`
	ApplyMode        string                   `json:"apply_mode"`
	QualityThreshold int                      `json:"quality_threshold"`
	Config           store.RegenerationConfig `json:"config"`
	Fields           []string                 `json:"fields"`
	Progress         JobProgress              `json:"progress"`
	ErrorLog         []string                 `json:"error_log"`
	StartedAt        string                   `json:"started_at,omitempty"`
	CompletedAt      string                   `json:"completed_at,omitempty"`
	CreatedAt        string                   `json:"created_at,omitempty"`
	UpdatedAt        string                   `json:"updated_at,omitempty"`
}

// JobItem describes the outcome for one page.
type JobItem struct {
	PageID            string             `json:"page_id"`
	Status            string             `json:"status"`
	QualityScore      int                `json:"quality_score"`
	ContentSimilarity float64            `json:"content_similarity"`
	ChangesApplied    bool               `json:"changes_applied"`
	UsedFallback      bool               `json:"used_fallback"`
	AppliedAt         string             `json:"applied_at,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	Before            *store.PageContent `json:"before_snapshot,omitempty"`
	After             *store.PageContent `json:"after_snapshot,omitempty"`
	CreatedAt         string             `json:"created_at,omitempty"`
}

// ContentVersion describes one undo record.
type ContentVersion struct {
	ID            string            `json:"id"`
	PageID        string            `json:"page_id"`
	JobID         string            `json:"job_id"`
	VersionType   string            `json:"version_type"`
	ChangedBy     string            `json:"changed_by"`
	IsRolledBack  bool              `json:"is_rolled_back"`
	RolledBackAt  string            `json:"rolled_back_at,omitempty"`
	ContentBefore store.PageContent `json:"content_before"`
	ContentAfter  store.PageContent `json:"content_after"`
	CreatedAt     string            `json:"created_at,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps recent jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobItemsResponse wraps the items of one job.
type JobItemsResponse struct {
	JobID string    `json:"job_id"`
	Items []JobItem `json:"items"`
}

// VersionsResponse wraps the versions of one page.
type VersionsResponse struct {
	PageID   string           `json:"page_id"`
	Versions []ContentVersion `json:"versions"`
}

// SearchResponse wraps ranked autocomplete options.
type SearchResponse struct {
	Kind    string                `json:"kind"`
	Query   string                `json:"query"`
	Results []search.ScoredOption `json:"results"`
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Storage string `json:"storage"`
	Error   string `json:"error,omitempty"`
}

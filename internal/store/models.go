package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a regeneration job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ParseJobStatus normalizes a status string.
func ParseJobStatus(value string) (JobStatus, bool) {
	status := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return status, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ItemStatus is the outcome of one processed page.
type ItemStatus string

const (
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// VersionTypeAIRegeneration marks versions written by the batch regenerator.
const VersionTypeAIRegeneration = "ai_regeneration"

var (
	// ErrPageNotFound is returned when a write targets a page that does not exist.
	ErrPageNotFound = errors.New("page not found")
	// ErrJobNotFound is returned when a job update targets an unknown job.
	ErrJobNotFound = errors.New("job not found")
)

// Section is one titled block of page copy.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// FAQ is one question and answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PageContent is the editable SEO content of a page. Snapshots and version
// payloads store it as JSON.
type PageContent struct {
	H1              string    `json:"h1"`
	MetaTitle       string    `json:"meta_title"`
	MetaDescription string    `json:"meta_description"`
	Content         string    `json:"content"`
	Sections        []Section `json:"sections"`
	FAQ             []FAQ     `json:"faq"`
}

// Clone returns a deep copy.
func (c PageContent) Clone() PageContent {
	out := c
	out.Sections = append([]Section(nil), c.Sections...)
	out.FAQ = append([]FAQ(nil), c.FAQ...)
	return out
}

// Page is a directory landing page keyed by a state/city[/service] slug.
type Page struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	PageType string `json:"page_type"`
	PageContent
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a copy of the page's editable content.
func (p *Page) Snapshot() PageContent {
	if p == nil {
		return PageContent{}
	}
	return p.PageContent.Clone()
}

// RegenerationConfig selects which fields a job regenerates. It is fixed for
// the lifetime of a job.
type RegenerationConfig struct {
	RegenerateH1              bool `json:"regenerate_h1"`
	RegenerateMetaTitle       bool `json:"regenerate_meta_title"`
	RegenerateMetaDescription bool `json:"regenerate_meta_description"`
	RegenerateContent         bool `json:"regenerate_content"`
	RegenerateSections        bool `json:"regenerate_sections"`
	RegenerateFAQ             bool `json:"regenerate_faq"`
	TargetWordCount           int  `json:"target_word_count"`
}

// Any reports whether at least one field is selected.
func (c RegenerationConfig) Any() bool {
	return c.RegenerateH1 || c.RegenerateMetaTitle || c.RegenerateMetaDescription ||
		c.RegenerateContent || c.RegenerateSections || c.RegenerateFAQ
}

// Fields lists the selected field names in a stable order.
func (c RegenerationConfig) Fields() []string {
	var fields []string
	if c.RegenerateH1 {
		fields = append(fields, "h1")
	}
	if c.RegenerateMetaTitle {
		fields = append(fields, "meta_title")
	}
	if c.RegenerateMetaDescription {
		fields = append(fields, "meta_description")
	}
	if c.RegenerateContent {
		fields = append(fields, "content")
	}
	if c.RegenerateSections {
		fields = append(fields, "sections")
	}
	if c.RegenerateFAQ {
		fields = append(fields, "faq")
	}
	return fields
}

// Job tracks one batch regeneration run.
type Job struct {
	ID               string             `json:"id"`
	Status           JobStatus          `json:"status"`
	TotalPages       int                `json:"total_pages"`
	ProcessedPages   int                `json:"processed_pages"`
	SuccessfulPages  int                `json:"successful_pages"`
	FailedPages      int                `json:"failed_pages"`
	ApplyMode        string             `json:"apply_mode"`
	QualityThreshold int                `json:"quality_threshold"`
	Config           RegenerationConfig `json:"config"`
	ErrorLog         []string           `json:"error_log"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ResetForRun mirrors what StartJob writes: running status, zeroed counters,
// an empty error log and a new start time.
func (j *Job) ResetForRun(started time.Time) {
	j.Status = JobRunning
	j.ProcessedPages, j.SuccessfulPages, j.FailedPages = 0, 0, 0
	j.ErrorLog = nil
	j.StartedAt = &started
	j.CompletedAt = nil
	j.UpdatedAt = started
}

// JobItem records the outcome of one page within a job.
type JobItem struct {
	ID             int64        `json:"id"`
	JobID          string       `json:"job_id"`
	PageID         string       `json:"page_id"`
	Status         ItemStatus   `json:"status"`
	BeforeSnapshot *PageContent `json:"before_snapshot,omitempty"`
	AfterSnapshot  *PageContent `json:"after_snapshot,omitempty"`
	QualityScore   int          `json:"quality_score"`
	// ContentSimilarity compares the visible body text before and after, 0..1.
	ContentSimilarity float64    `json:"content_similarity"`
	ChangesApplied    bool       `json:"changes_applied"`
	AppliedAt         *time.Time `json:"applied_at,omitempty"`
	UsedFallback      bool       `json:"used_fallback"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ContentVersion is the undo record written when generated content is applied.
type ContentVersion struct {
	ID            string      `json:"id"`
	PageID        string      `json:"page_id"`
	JobID         string      `json:"job_id"`
	VersionType   string      `json:"version_type"`
	ContentBefore PageContent `json:"content_before"`
	ContentAfter  PageContent `json:"content_after"`
	ChangedBy     string      `json:"changed_by"`
	IsRolledBack  bool        `json:"is_rolled_back"`
	RolledBackAt  *time.Time  `json:"rolled_back_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ItemErrorEntry formats a per-item failure for the job error log.
func ItemErrorEntry(pageID, message string) string {
	return fmt.Sprintf("Page %s: %s", pageID, message)
}

// AbandonedEntry formats the error log line written when a stale job is reclaimed.
func AbandonedEntry(lastProgress time.Time) string {
	return "job abandoned: no progress since " + lastProgress.UTC().Format(time.RFC3339)
}

// Repository is the persistence surface shared by the SQLite and Postgres
// backends. Getters return nil, nil when the record does not exist.
type Repository interface {
	UpsertPage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)
	ListPages(ctx context.Context) ([]*Page, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	StartJob(ctx context.Context, job *Job) error
	RecordItem(ctx context.Context, item *JobItem) (*Job, error)
	FinishJob(ctx context.Context, id string, status JobStatus) (*Job, error)
	ListItems(ctx context.Context, jobID string) ([]*JobItem, error)
	ReclaimStaleJobs(ctx context.Context, cutoff time.Time) ([]string, error)

	ApplyContent(ctx context.Context, pageID string, content PageContent, version *ContentVersion) error
	GetVersion(ctx context.Context, id string) (*ContentVersion, error)
	ListVersions(ctx context.Context, pageID string) ([]*ContentVersion, error)
	RollbackVersion(ctx context.Context, id string) (*ContentVersion, error)

	Ping(ctx context.Context) error
	Close() error
}

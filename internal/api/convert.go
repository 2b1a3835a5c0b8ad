package api

import (
	"math"
	"time"

	"dentaldir/internal/store"
)

// FromJob converts a store job into its transport form.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}
	fields := job.Config.Fields()
	if fields == nil {
		fields = []string{}
	}
	errorLog := job.ErrorLog
	if errorLog == nil {
		errorLog = []string{}
	}
	return Job{
		ID:               job.ID,
		Status:           string(job.Status),
		ApplyMode:        job.ApplyMode,
		QualityThreshold: job.QualityThreshold,
		Config:           job.Config,
		Fields:           fields,
		Progress:         progressFor(job),
		ErrorLog:         errorLog,
		StartedAt:        formatTimePtr(job.StartedAt),
		CompletedAt:      formatTimePtr(job.CompletedAt),
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of jobs.
func FromJobs(jobs []*store.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromJobItems converts job items preserving processing order.
func FromJobItems(items []*store.JobItem) []JobItem {
	out := make([]JobItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, JobItem{
			PageID:            item.PageID,
			Status:            string(item.Status),
			QualityScore:      item.QualityScore,
			ContentSimilarity: item.ContentSimilarity,
			ChangesApplied:    item.ChangesApplied,
			UsedFallback:      item.UsedFallback,
			AppliedAt:         formatTimePtr(item.AppliedAt),
			ErrorMessage:      item.ErrorMessage,
			Before:            item.BeforeSnapshot,
			After:             item.AfterSnapshot,
			CreatedAt:         formatTime(item.CreatedAt),
		})
	}
	return out
}

// FromVersion converts one content version.
func FromVersion(v *store.ContentVersion) ContentVersion {
	if v == nil {
		return ContentVersion{}
	}
	return ContentVersion{
		ID:            v.ID,
		PageID:        v.PageID,
		JobID:         v.JobID,
		VersionType:   v.VersionType,
		ChangedBy:     v.ChangedBy,
		IsRolledBack:  v.IsRolledBack,
		RolledBackAt:  formatTimePtr(v.RolledBackAt),
		ContentBefore: v.ContentBefore,
		ContentAfter:  v.ContentAfter,
		CreatedAt:     formatTime(v.CreatedAt),
	}
}

// FromVersions converts a slice of versions, newest first as stored.
func FromVersions(versions []*store.ContentVersion) []ContentVersion {
	out := make([]ContentVersion, 0, len(versions))
	for _, v := range versions {
		if v == nil {
			continue
		}
		out = append(out, FromVersion(v))
	}
	return out
}

func progressFor(job *store.Job) JobProgress {
	p := JobProgress{
		Total:      job.TotalPages,
		Processed:  job.ProcessedPages,
		Successful: job.SuccessfulPages,
		Failed:     job.FailedPages,
	}
	switch {
	case job.Status == store.JobCompleted:
		p.Percent = 100
	case job.TotalPages > 0:
		percent := float64(job.ProcessedPages) / float64(job.TotalPages) * 100
		p.Percent = math.Round(math.Min(percent, 100)*10) / 10
	}
	return p
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

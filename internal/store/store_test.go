package store_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"dentaldir/internal/store"
	"dentaldir/internal/testsupport"
)

func TestOpenCreatesSchemaAndRoundTripsPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seeded := testsupport.SeedPage(t, st, "page-1", "/dubai/dubai-marina/")
	if seeded.Slug != "dubai/dubai-marina" {
		t.Fatalf("expected slug slashes trimmed, got %q", seeded.Slug)
	}

	fetched, err := st.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected page")
	}
	if fetched.PageType != "location" {
		t.Fatalf("expected default page type, got %q", fetched.PageType)
	}
	if len(fetched.Sections) != 1 || fetched.Sections[0].Body != "Old body" {
		t.Fatalf("unexpected sections: %#v", fetched.Sections)
	}
	if len(fetched.FAQ) != 1 || fetched.FAQ[0].Answer != "Old." {
		t.Fatalf("unexpected faq: %#v", fetched.FAQ)
	}

	missing, err := st.GetPage(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing page, got %#v, %v", missing, err)
	}

	reopened, err := store.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	pages, err := reopened.ListPages(ctx)
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page after reopen, got %d", len(pages))
	}
}

func TestRecordItemBumpsCountersAndErrorLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &store.Job{
		ApplyMode:        "quality_gated",
		QualityThreshold: 70,
		Config:           store.RegenerationConfig{RegenerateH1: true, TargetWordCount: 800},
	}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.ID == "" || job.Status != store.JobPending {
		t.Fatalf("expected generated id and pending status, got %#v", job)
	}
	job.TotalPages = 2
	if err := st.StartJob(ctx, job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	before := store.PageContent{H1: "Before"}
	updated, err := st.RecordItem(ctx, &store.JobItem{
		JobID:          job.ID,
		PageID:         "p1",
		Status:         store.ItemCompleted,
		BeforeSnapshot: &before,
		QualityScore:   80,
	})
	if err != nil {
		t.Fatalf("RecordItem completed: %v", err)
	}
	if updated.ProcessedPages != 1 || updated.SuccessfulPages != 1 || updated.FailedPages != 0 {
		t.Fatalf("unexpected counters after success: %#v", updated)
	}

	updated, err = st.RecordItem(ctx, &store.JobItem{
		JobID:        job.ID,
		PageID:       "p2",
		Status:       store.ItemFailed,
		ErrorMessage: "page not found",
	})
	if err != nil {
		t.Fatalf("RecordItem failed: %v", err)
	}
	if updated.ProcessedPages != 2 || updated.FailedPages != 1 {
		t.Fatalf("unexpected counters after failure: %#v", updated)
	}
	if len(updated.ErrorLog) != 1 || updated.ErrorLog[0] != "Page p2: page not found" {
		t.Fatalf("unexpected error log: %#v", updated.ErrorLog)
	}

	finished, err := st.FinishJob(ctx, job.ID, store.JobCompleted)
	if err != nil {
		t.Fatalf("FinishJob: %v", err)
	}
	if finished.Status != store.JobCompleted || finished.CompletedAt == nil || finished.StartedAt == nil {
		t.Fatalf("unexpected finished job: %#v", finished)
	}
	if finished.Config.TargetWordCount != 800 || !finished.Config.RegenerateH1 {
		t.Fatalf("config not persisted: %#v", finished.Config)
	}

	items, err := st.ListItems(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || items[0].PageID != "p1" || items[1].PageID != "p2" {
		t.Fatalf("expected items in processing order, got %#v", items)
	}
	if items[0].BeforeSnapshot == nil || items[0].BeforeSnapshot.H1 != "Before" {
		t.Fatalf("before snapshot not persisted: %#v", items[0].BeforeSnapshot)
	}
	if items[1].BeforeSnapshot != nil {
		t.Fatalf("expected nil snapshot for failed item, got %#v", items[1].BeforeSnapshot)
	}
}

func TestRecordItemUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.RecordItem(context.Background(), &store.JobItem{JobID: "missing", PageID: "p", Status: store.ItemCompleted})
	if !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestFinishJobRejectsNonTerminalStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &store.Job{ID: "job-1"}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := st.FinishJob(ctx, job.ID, store.JobRunning); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestApplyContentAndRollback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	page := testsupport.SeedPage(t, st, "page-1", "dubai/jumeirah")
	before := page.Snapshot()
	after := before.Clone()
	after.H1 = "Best Dentists in Jumeirah"

	version := &store.ContentVersion{JobID: "job-1", ContentBefore: before, ContentAfter: after, ChangedBy: "tester"}
	if err := st.ApplyContent(ctx, page.ID, after, version); err != nil {
		t.Fatalf("ApplyContent: %v", err)
	}
	if version.ID == "" || version.VersionType != store.VersionTypeAIRegeneration {
		t.Fatalf("expected id and default version type, got %#v", version)
	}

	live, _ := st.GetPage(ctx, page.ID)
	if live.H1 != after.H1 {
		t.Fatalf("expected applied h1, got %q", live.H1)
	}

	for range 2 {
		rolled, err := st.RollbackVersion(ctx, version.ID)
		if err != nil {
			t.Fatalf("RollbackVersion: %v", err)
		}
		if rolled == nil || !rolled.IsRolledBack || rolled.RolledBackAt == nil {
			t.Fatalf("unexpected rolled back version: %#v", rolled)
		}
		live, _ = st.GetPage(ctx, page.ID)
		if live.H1 != before.H1 || live.Content != before.Content {
			t.Fatalf("expected original content restored, got %#v", live.PageContent)
		}
	}

	versions, err := st.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || !versions[0].IsRolledBack || versions[0].ChangedBy != "tester" {
		t.Fatalf("unexpected versions: %#v", versions)
	}

	missing, err := st.RollbackVersion(ctx, "unknown")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown version, got %#v, %v", missing, err)
	}
}

func TestApplyContentMissingPageWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	version := &store.ContentVersion{ID: "v1"}
	err := st.ApplyContent(ctx, "ghost", store.PageContent{H1: "x"}, version)
	if !errors.Is(err, store.ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	got, err := st.GetVersion(ctx, "v1")
	if err != nil || got != nil {
		t.Fatalf("expected no version row, got %#v, %v", got, err)
	}
}

func TestReclaimStaleJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := &store.Job{ID: "running"}
	idle := &store.Job{ID: "idle"}
	for _, job := range []*store.Job{running, idle} {
		if err := st.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	running.TotalPages = 3
	if err := st.StartJob(ctx, running); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	reclaimed, err := st.ReclaimStaleJobs(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleJobs: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("expected fresh job to be kept, got %v", reclaimed)
	}

	reclaimed, err = st.ReclaimStaleJobs(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleJobs: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != running.ID {
		t.Fatalf("expected only the running job reclaimed, got %v", reclaimed)
	}
	job, _ := st.GetJob(ctx, running.ID)
	if job.Status != store.JobFailed || len(job.ErrorLog) != 1 || !strings.HasPrefix(job.ErrorLog[0], "job abandoned") {
		t.Fatalf("unexpected reclaimed job: %#v", job)
	}
	other, _ := st.GetJob(ctx, idle.ID)
	if other.Status != store.JobPending {
		t.Fatalf("pending job should be untouched, got %s", other.Status)
	}

	jobs, err := st.ListJobs(ctx, 10)
	if err != nil || len(jobs) != 2 {
		t.Fatalf("ListJobs: %d jobs, %v", len(jobs), err)
	}
}

func TestParseJobStatus(t *testing.T) {
	if status, ok := store.ParseJobStatus(" Running "); !ok || status != store.JobRunning {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := store.ParseJobStatus("cancelled"); ok {
		t.Fatal("cancelled is not a job status")
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	path := st.Path()

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := raw.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	_ = raw.Close()

	if _, err := store.OpenPath(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

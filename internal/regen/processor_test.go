package regen_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"dentaldir/internal/config"
	"dentaldir/internal/regen"
	"dentaldir/internal/services"
	"dentaldir/internal/services/llm"
	"dentaldir/internal/store"
	"dentaldir/internal/testsupport"
)

// scriptedAI answers CompleteJSON from a per-call script.
type scriptedAI struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(call int) (string, error)
}

func (s *scriptedAI) CompleteJSON(_ context.Context, _, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, user)
	return s.respond(s.calls)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func (r *sleepRecorder) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func generatedJSON(t *testing.T, fields map[string]any) string {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(data)
}

func goodPayload(t *testing.T) string {
	return generatedJSON(t, map[string]any{
		"h1":         "Top Rated Dentists in Dubai Marina",
		"meta_title": "Top Rated Dentists in Dubai Marina, Dubai",
	})
}

func rateLimited() error {
	return &llm.HTTPStatusError{StatusCode: 429, Body: "rate limit exceeded"}
}

func allFields() store.RegenerationConfig {
	return store.RegenerationConfig{
		RegenerateH1:              true,
		RegenerateMetaTitle:       true,
		RegenerateMetaDescription: true,
		RegenerateContent:         true,
		RegenerateSections:        true,
		RegenerateFAQ:             true,
	}
}

type harness struct {
	store   *store.Store
	ai      *scriptedAI
	sleeps  *sleepRecorder
	proc    *regen.Processor
	setting regen.Settings
}

func newHarness(t *testing.T, respond func(call int) (string, error), pages ...string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	for _, id := range pages {
		testsupport.SeedPage(t, st, id, "dubai/dubai-marina/"+id)
	}
	h := &harness{
		store:  st,
		ai:     &scriptedAI{respond: respond},
		sleeps: &sleepRecorder{},
		setting: regen.Settings{
			MaxAttempts:    3,
			BackoffBase:    3 * time.Second,
			InterItemDelay: 0,
		},
	}
	h.proc = regen.NewProcessor(st, h.ai, h.setting, regen.WithSleeper(h.sleeps.sleep))
	return h
}

func TestProcessJobContinuesPastFailedItem(t *testing.T) {
	pages := []string{"p1", "p2", "p3", "p4", "p5"}
	h := newHarness(t, func(call int) (string, error) {
		if call == 3 {
			return "", errors.New("upstream exploded")
		}
		return goodPayload(t), nil
	}, pages...)

	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		JobID:     "job-partial",
		PageIDs:   pages,
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if res.Processed != 5 || res.Successful != 4 || res.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if res.Status != store.JobCompleted {
		t.Fatalf("expected completed job, got %s", res.Status)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Page p3: ") {
		t.Fatalf("expected one error for p3, got %#v", res.Errors)
	}

	job, err := h.store.GetJob(context.Background(), "job-partial")
	if err != nil || job == nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.SuccessfulPages != 4 || job.FailedPages != 1 || job.CompletedAt == nil {
		t.Fatalf("unexpected stored job: %#v", job)
	}

	items, _ := h.store.ListItems(context.Background(), "job-partial")
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i, item := range items {
		if item.PageID != pages[i] {
			t.Fatalf("items out of order: %d is %s", i, item.PageID)
		}
	}
	if items[2].Status != store.ItemFailed || items[2].ErrorMessage != "upstream exploded" {
		t.Fatalf("unexpected failed item: %#v", items[2])
	}
	if h.ai.calls != 5 {
		t.Fatalf("non rate-limit errors must not retry, got %d calls", h.ai.calls)
	}
}

func TestProcessJobRetriesRateLimitThenSucceeds(t *testing.T) {
	h := newHarness(t, func(call int) (string, error) {
		if call < 3 {
			return "", rateLimited()
		}
		return goodPayload(t), nil
	}, "p1")

	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if res.Successful != 1 {
		t.Fatalf("expected success, got %+v", res)
	}
	if got := h.sleeps.total(); got < 9*time.Second {
		t.Fatalf("expected at least 9s of backoff, got %s", got)
	}
	if len(h.sleeps.delays) != 2 || h.sleeps.delays[0] != 3*time.Second || h.sleeps.delays[1] != 6*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", h.sleeps.delays)
	}

	items, _ := h.store.ListItems(context.Background(), res.JobID)
	if len(items) != 1 || items[0].UsedFallback {
		t.Fatalf("expected AI content without fallback, got %#v", items)
	}
	page, _ := h.store.GetPage(context.Background(), "p1")
	if page.H1 != "Top Rated Dentists in Dubai Marina" {
		t.Fatalf("expected generated h1 applied, got %q", page.H1)
	}
}

func TestProcessJobFallsBackWhenAlwaysRateLimited(t *testing.T) {
	h := newHarness(t, func(int) (string, error) {
		return "", errors.New("AI API error: 429 Too Many Requests")
	}, "p1")

	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if res.Successful != 1 || res.Failed != 0 {
		t.Fatalf("expected fallback success, got %+v", res)
	}
	if h.ai.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.ai.calls)
	}
	items, _ := h.store.ListItems(context.Background(), res.JobID)
	if !items[0].UsedFallback || items[0].Status != store.ItemCompleted {
		t.Fatalf("expected completed fallback item, got %#v", items[0])
	}
	page, _ := h.store.GetPage(context.Background(), "p1")
	if page.H1 != "P1 in Dubai Marina, Dubai" {
		t.Fatalf("expected template h1, got %q", page.H1)
	}
}

func TestProcessJobQualityGate(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantScore   int
		wantApplied bool
	}{
		{name: "below threshold", description: strings.Repeat("x", 161), wantScore: 65, wantApplied: false},
		{name: "at threshold", description: "", wantScore: 70, wantApplied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(int) (string, error) {
				return generatedJSON(t, map[string]any{
					"h1":               "Top Rated Dentists in Dubai Marina",
					"meta_title":       "Top Rated Dentists in Dubai Marina, Dubai",
					"meta_description": tt.description,
				}), nil
			}, "p1")
			before, _ := h.store.GetPage(context.Background(), "p1")

			res, err := h.proc.ProcessJob(context.Background(), regen.Request{
				PageIDs:          []string{"p1"},
				Config:           allFields(),
				ApplyMode:        config.ApplyModeQualityGated,
				QualityThreshold: 70,
			})
			if err != nil {
				t.Fatalf("ProcessJob: %v", err)
			}
			items, _ := h.store.ListItems(context.Background(), res.JobID)
			item := items[0]
			if item.QualityScore != tt.wantScore {
				t.Fatalf("expected score %d, got %d", tt.wantScore, item.QualityScore)
			}
			if item.ChangesApplied != tt.wantApplied {
				t.Fatalf("expected applied=%v, got %v", tt.wantApplied, item.ChangesApplied)
			}
			after, _ := h.store.GetPage(context.Background(), "p1")
			versions, _ := h.store.ListVersions(context.Background(), "p1")
			if tt.wantApplied {
				if after.H1 == before.H1 || len(versions) != 1 || item.AppliedAt == nil {
					t.Fatalf("expected applied content and one version, got %#v / %d versions", after.PageContent, len(versions))
				}
				return
			}
			if after.H1 != before.H1 || after.MetaTitle != before.MetaTitle || len(versions) != 0 {
				t.Fatalf("page must be unchanged below threshold, got %#v", after.PageContent)
			}
			if item.AfterSnapshot == nil || item.AfterSnapshot.H1 == before.H1 {
				t.Fatalf("expected proposed content in after snapshot, got %#v", item.AfterSnapshot)
			}
		})
	}
}

func TestProcessJobPreviewNeverApplies(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil }, "p1")
	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    allFields(),
		ApplyMode: "preview",
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	items, _ := h.store.ListItems(context.Background(), res.JobID)
	if items[0].ChangesApplied {
		t.Fatal("preview mode must not apply")
	}
}

func TestProcessJobAllFailedMarksJobFailed(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil })
	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"ghost-1", "ghost-2"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if res.Status != store.JobFailed || res.Failed != 2 {
		t.Fatalf("expected failed job, got %+v", res)
	}
	if res.Errors[0] != "Page ghost-1: page not found" {
		t.Fatalf("unexpected error entry %q", res.Errors[0])
	}
	if h.ai.calls != 0 {
		t.Fatalf("missing pages must not call the AI endpoint, got %d calls", h.ai.calls)
	}
}

func TestProcessJobThrottlesBetweenItems(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil }, "p1", "p2", "p3")
	settings := h.setting
	settings.InterItemDelay = 2 * time.Second
	proc := regen.NewProcessor(h.store, h.ai, settings, regen.WithSleeper(h.sleeps.sleep))

	if _, err := proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1", "p2", "p3"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	}); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if len(h.sleeps.delays) != 2 || h.sleeps.total() != 4*time.Second {
		t.Fatalf("expected two 2s delays, got %v", h.sleeps.delays)
	}
}

func TestProcessJobUnparseablePayloadUsesFallback(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return `{"h1": "Truncated`, nil }, "p1")
	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    store.RegenerationConfig{RegenerateFAQ: true},
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	items, _ := h.store.ListItems(context.Background(), res.JobID)
	if items[0].Status != store.ItemCompleted || !items[0].UsedFallback {
		t.Fatalf("expected fallback item, got %#v", items[0])
	}
	page, _ := h.store.GetPage(context.Background(), "p1")
	if len(page.FAQ) != 3 || page.H1 != "Dentists in dubai/dubai-marina/p1" {
		t.Fatalf("expected only faq replaced, got %#v", page.PageContent)
	}
}

func TestProcessJobRejectsInvalidRequest(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil })
	_, err := h.proc.ProcessJob(context.Background(), regen.Request{PageIDs: []string{"p1"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessJobStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil }, "p1", "p2")
	ctx, cancel := context.WithCancel(context.Background())
	settings := h.setting
	settings.InterItemDelay = time.Second
	proc := regen.NewProcessor(h.store, h.ai, settings, regen.WithSleeper(func(time.Duration) { cancel() }))

	_, err := proc.ProcessJob(ctx, regen.Request{
		JobID:     "job-cancel",
		PageIDs:   []string{"p1", "p2"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	job, _ := h.store.GetJob(context.Background(), "job-cancel")
	if job.Status != store.JobRunning || job.ProcessedPages != 1 {
		t.Fatalf("expected running job with one processed page, got %#v", job)
	}
}

func TestRollbackPageIsIdempotent(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil }, "p1")
	original, _ := h.store.GetPage(context.Background(), "p1")

	if _, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	}); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	versions, _ := h.store.ListVersions(context.Background(), "p1")
	if len(versions) != 1 {
		t.Fatalf("expected one version, got %d", len(versions))
	}

	var states []store.PageContent
	for range 2 {
		version, err := h.proc.RollbackPage(context.Background(), versions[0].ID)
		if err != nil {
			t.Fatalf("RollbackPage: %v", err)
		}
		if !version.IsRolledBack {
			t.Fatal("expected version marked rolled back")
		}
		page, _ := h.store.GetPage(context.Background(), "p1")
		states = append(states, page.PageContent)
	}
	if states[0].H1 != original.H1 || states[1].H1 != original.H1 || states[0].MetaTitle != states[1].MetaTitle {
		t.Fatalf("rollback not idempotent: %#v", states)
	}

	if _, err := h.proc.RollbackPage(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown version, got %v", err)
	}
	if _, err := h.proc.RollbackPage(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank id, got %v", err)
	}
}

func TestQualityGateScoresGeneratedFieldsOnly(t *testing.T) {
	h := newHarness(t, func(int) (string, error) {
		return generatedJSON(t, map[string]any{"h1": "Top Rated Dentists in Dubai Marina"}), nil
	}, "p1")
	ctx := context.Background()

	page, _ := h.store.GetPage(ctx, "p1")
	page.MetaTitle = "Trusted Dentists in Dubai Marina | Book Today"
	page.MetaDescription = strings.Repeat("d", 130)
	page.Sections = []store.Section{
		{Heading: "Whitening", Body: "Same day whitening."},
		{Heading: "Implants", Body: "Titanium and zirconia implants."},
		{Heading: "Braces", Body: "Clear aligners and metal braces."},
	}
	if err := h.store.UpsertPage(ctx, page); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}

	res, err := h.proc.ProcessJob(ctx, regen.Request{
		PageIDs:          []string{"p1"},
		Config:           store.RegenerationConfig{RegenerateH1: true},
		ApplyMode:        config.ApplyModeQualityGated,
		QualityThreshold: 80,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	items, _ := h.store.ListItems(ctx, res.JobID)
	item := items[0]
	if item.QualityScore != 60 {
		t.Fatalf("expected the h1-only payload to score 60, got %d", item.QualityScore)
	}
	if item.ChangesApplied {
		t.Fatal("existing page content must not lift a weak generation over the threshold")
	}
	if math.Abs(item.ContentSimilarity-1) > 1e-9 {
		t.Fatalf("untouched body should be identical, got similarity %v", item.ContentSimilarity)
	}
	after, _ := h.store.GetPage(ctx, "p1")
	if after.H1 != page.H1 {
		t.Fatalf("page changed below threshold: %q", after.H1)
	}
}

func TestRerunReplacesJobSettingsAndItems(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return goodPayload(t), nil }, "p1", "p2")
	ctx := context.Background()

	if _, err := h.proc.ProcessJob(ctx, regen.Request{
		JobID:     "rerun",
		PageIDs:   []string{"p1", "p2"},
		Config:    store.RegenerationConfig{RegenerateMetaTitle: true},
		ApplyMode: config.ApplyModeAuto,
	}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := h.proc.ProcessJob(ctx, regen.Request{
		JobID:            "rerun",
		PageIDs:          []string{"p1"},
		Config:           store.RegenerationConfig{RegenerateH1: true},
		ApplyMode:        config.ApplyModePreview,
		QualityThreshold: 90,
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("expected one processed page, got %+v", res)
	}

	job, err := h.store.GetJob(ctx, "rerun")
	if err != nil || job == nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.ApplyMode != config.ApplyModePreview || job.QualityThreshold != 90 {
		t.Fatalf("job kept the first run's settings: mode=%q threshold=%d", job.ApplyMode, job.QualityThreshold)
	}
	if !job.Config.RegenerateH1 || job.Config.RegenerateMetaTitle {
		t.Fatalf("job kept the first run's fields: %+v", job.Config)
	}
	if job.TotalPages != 1 || job.ProcessedPages != 1 {
		t.Fatalf("unexpected counters %+v", job)
	}
	items, _ := h.store.ListItems(ctx, "rerun")
	if len(items) != 1 || items[0].PageID != "p1" || items[0].ChangesApplied {
		t.Fatalf("expected only the second run's item, got %#v", items)
	}
}

func TestUpstreamErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	h := newHarness(t, func(int) (string, error) {
		return "", &llm.HTTPStatusError{StatusCode: 500, Body: strings.Repeat("é", 300)}
	}, "p1")

	res, err := h.proc.ProcessJob(context.Background(), regen.Request{
		PageIDs:   []string{"p1"},
		Config:    allFields(),
		ApplyMode: config.ApplyModeAuto,
	})
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	items, _ := h.store.ListItems(context.Background(), res.JobID)
	msg := items[0].ErrorMessage
	if !utf8.ValidString(msg) {
		t.Fatalf("error message is not valid UTF-8: %q", msg)
	}
	if want := "AI request failed with status 500: " + strings.Repeat("é", 200); msg != want {
		t.Fatalf("unexpected error message %q", msg)
	}
	if len(res.Errors) != 1 || !utf8.ValidString(res.Errors[0]) {
		t.Fatalf("unexpected job error log %q", res.Errors)
	}
}

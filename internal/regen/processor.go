package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"dentaldir/internal/config"
	"dentaldir/internal/logging"
	"dentaldir/internal/notifications"
	"dentaldir/internal/services"
	"dentaldir/internal/services/llm"
	"dentaldir/internal/store"
	"dentaldir/internal/textutil"
)

// Completer is the AI endpoint surface the processor needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Settings controls retry and throttling.
type Settings struct {
	// MaxAttempts bounds AI calls per item when rate limited.
	MaxAttempts int
	// BackoffBase is the wait after the first rate-limited attempt; it
	// doubles for each following attempt.
	BackoffBase time.Duration
	// InterItemDelay is slept before every item except the first.
	InterItemDelay time.Duration
	ChangedBy      string
}

// SettingsFromConfig reads the [regeneration] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxAttempts:    cfg.Regeneration.MaxAttempts,
		BackoffBase:    cfg.BackoffBase(),
		InterItemDelay: cfg.InterItemDelay(),
		ChangedBy:      cfg.Regeneration.ChangedBy,
	}
}

// Processor runs batch regeneration jobs one page at a time.
type Processor struct {
	repo     store.Repository
	ai       Completer
	settings Settings
	notifier notifications.Service
	logger   *slog.Logger
	sleeper  func(time.Duration)
	now      func() time.Time
}

// Option customizes a Processor.
type Option func(*Processor)

// WithNotifier publishes job events through svc.
func WithNotifier(svc notifications.Service) Option {
	return func(p *Processor) {
		p.notifier = svc
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithSleeper overrides how delays are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(p *Processor) {
		p.sleeper = sleeper
	}
}

// NewProcessor constructs a Processor. The AI client should not retry on its
// own; rate-limit retries belong to the processor.
func NewProcessor(repo store.Repository, ai Completer, settings Settings, opts ...Option) *Processor {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 3
	}
	if settings.ChangedBy == "" {
		settings.ChangedBy = "ai_batch_regeneration"
	}
	p := &Processor{
		repo:     repo,
		ai:       ai,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "regen")
	return p
}

// ProcessJob runs req to completion. Pages are handled strictly in order and
// a failing page never stops the batch; the job ends failed only when every
// page failed. The job row is created when it does not exist yet. Errors are
// returned for invalid requests, persistence failures on the job itself, and
// context cancellation between items.
func (p *Processor) ProcessJob(ctx context.Context, req Request) (*Result, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	job, err := p.ensureJob(ctx, &req)
	if err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, p.logger)

	job.ApplyMode = req.ApplyMode
	job.QualityThreshold = req.QualityThreshold
	job.Config = req.Config
	job.TotalPages = len(req.PageIDs)
	if err := p.repo.StartJob(ctx, job); err != nil {
		return nil, services.Wrap(services.ErrTransient, "regen", "start job", "Failed to mark job running", err)
	}
	logger.Info("regeneration job started",
		logging.Event("job_started"),
		logging.Int("pages", len(req.PageIDs)),
		logging.String("apply_mode", req.ApplyMode),
		logging.Int("quality_threshold", req.QualityThreshold),
		logging.Any("fields", req.Config.Fields()),
	)
	notifications.Publish(ctx, p.notifier, logger, notifications.EventJobStarted, notifications.Payload{
		"jobId": job.ID,
		"total": len(req.PageIDs),
	})

	started := p.now()
	for i, pageID := range req.PageIDs {
		if i > 0 {
			if err := p.sleep(ctx, p.settings.InterItemDelay); err != nil {
				return nil, fmt.Errorf("job %s interrupted before page %s: %w", job.ID, pageID, err)
			}
		}
		item := p.processItem(services.WithPageID(ctx, pageID), &req, pageID)
		updated, err := p.repo.RecordItem(ctx, item)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "regen", "record item",
				fmt.Sprintf("Failed to record page %s", pageID), err)
		}
		job = updated
		notifications.Publish(ctx, p.notifier, logger, notifications.EventJobProgress, notifications.Payload{
			"jobId":      job.ID,
			"pageId":     pageID,
			"status":     string(item.Status),
			"processed":  job.ProcessedPages,
			"successful": job.SuccessfulPages,
			"failed":     job.FailedPages,
			"total":      job.TotalPages,
		})
	}

	status := store.JobCompleted
	if job.SuccessfulPages == 0 {
		status = store.JobFailed
	}
	finished, err := p.repo.FinishJob(ctx, job.ID, status)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "regen", "finish job", "Failed to record job completion", err)
	}

	logger.Info("regeneration job finished",
		logging.Event("job_completed"),
		logging.String("status", string(finished.Status)),
		logging.Int("successful", finished.SuccessfulPages),
		logging.Int("failed", finished.FailedPages),
		logging.Duration("duration", p.now().Sub(started)),
	)
	notifications.Publish(ctx, p.notifier, logger, notifications.EventJobCompleted, notifications.Payload{
		"jobId":      finished.ID,
		"status":     string(finished.Status),
		"successful": finished.SuccessfulPages,
		"failed":     finished.FailedPages,
	})

	errs := finished.ErrorLog
	if errs == nil {
		errs = []string{}
	}
	return &Result{
		JobID:      finished.ID,
		Status:     finished.Status,
		Processed:  finished.ProcessedPages,
		Successful: finished.SuccessfulPages,
		Failed:     finished.FailedPages,
		Errors:     errs,
	}, nil
}

func (p *Processor) ensureJob(ctx context.Context, req *Request) (*store.Job, error) {
	if req.JobID != "" {
		job, err := p.repo.GetJob(ctx, req.JobID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "regen", "load job", "Failed to load job", err)
		}
		if job != nil {
			return job, nil
		}
	}
	job := &store.Job{
		ID:               req.JobID,
		ApplyMode:        req.ApplyMode,
		QualityThreshold: req.QualityThreshold,
		Config:           req.Config,
	}
	if err := p.repo.CreateJob(ctx, job); err != nil {
		return nil, services.Wrap(services.ErrTransient, "regen", "create job", "Failed to create job", err)
	}
	req.JobID = job.ID
	return job, nil
}

// processItem runs the per-page pipeline and returns the item to record.
// It never returns nil; failures are captured on the item.
func (p *Processor) processItem(ctx context.Context, req *Request, pageID string) *store.JobItem {
	logger := logging.WithContext(ctx, p.logger)
	item := &store.JobItem{JobID: req.JobID, PageID: pageID, Status: store.ItemFailed}
	fail := func(msg string, err error) *store.JobItem {
		item.ErrorMessage = msg
		attrs := []logging.Attr{logging.String("reason", msg)}
		if err != nil {
			attrs = append(attrs, logging.Error(err), logging.ErrorKind(err))
		}
		logger.Warn("page regeneration failed", logging.Args(attrs...)...)
		return item
	}

	page, err := p.repo.GetPage(ctx, pageID)
	if err != nil {
		return fail("load page: "+err.Error(), err)
	}
	if page == nil {
		return fail("page not found", nil)
	}
	before := page.Snapshot()
	item.BeforeSnapshot = &before

	pc := ContextFromPage(page)
	system, user := BuildPrompt(pc, before, req.Config, req.CustomPrompt)
	raw, rateLimited, err := p.generate(ctx, system, user)
	if err != nil {
		return fail(errorMessage(err), err)
	}

	var generated store.PageContent
	switch {
	case rateLimited:
		generated = FallbackContent(pc, req.Config)
		item.UsedFallback = true
	default:
		parsed, parseErr := ParseGenerated(raw)
		if parseErr != nil {
			logger.Warn("unusable AI payload; using template content", logging.Error(parseErr))
			generated = FallbackContent(pc, req.Config)
			item.UsedFallback = true
		} else {
			generated = parsed
		}
	}

	// Only generated fields count toward the score.
	item.QualityScore = QualityScore(generated)
	after := Merge(before, generated, req.Config)
	item.AfterSnapshot = &after
	item.ContentSimilarity = textutil.ContentSimilarity(before.Content, after.Content)
	item.Status = store.ItemCompleted

	if ShouldApply(req.ApplyMode, item.QualityScore, req.QualityThreshold) {
		version := &store.ContentVersion{
			JobID:         req.JobID,
			VersionType:   store.VersionTypeAIRegeneration,
			ContentBefore: before,
			ContentAfter:  after,
			ChangedBy:     p.settings.ChangedBy,
		}
		if err := p.repo.ApplyContent(ctx, page.ID, after, version); err != nil {
			item.Status = store.ItemFailed
			return fail("apply content: "+err.Error(), err)
		}
		appliedAt := p.now()
		item.ChangesApplied = true
		item.AppliedAt = &appliedAt
	}

	logger.Info("page regenerated",
		logging.Int("quality_score", item.QualityScore),
		logging.Bool("applied", item.ChangesApplied),
		logging.Bool("used_fallback", item.UsedFallback),
		logging.String("content_similarity", strconv.FormatFloat(item.ContentSimilarity, 'f', 2, 64)),
	)
	return item
}

// generate calls the AI endpoint, retrying only rate-limited failures with
// doubling backoff. rateLimited is true when every attempt was rate limited.
func (p *Processor) generate(ctx context.Context, system, user string) (raw string, rateLimited bool, err error) {
	logger := logging.WithContext(ctx, p.logger)
	attempts := p.settings.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err = p.ai.CompleteJSON(ctx, system, user)
		if err == nil {
			return raw, false, nil
		}
		if ctx.Err() != nil || !llm.IsRateLimited(err) {
			return "", false, err
		}
		if attempt == attempts {
			break
		}
		delay := p.backoff(attempt)
		logger.Warn("AI endpoint rate limited; backing off",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return "", false, err
		}
	}
	logger.Warn("AI endpoint still rate limited; using template content",
		logging.Int("attempts", attempts),
	)
	return "", true, nil
}

func (p *Processor) backoff(attempt int) time.Duration {
	if p.settings.BackoffBase <= 0 {
		return 0
	}
	return p.settings.BackoffBase << (attempt - 1)
}

func (p *Processor) sleep(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const maxErrorBodyRunes = 200

// errorMessage is the item error text. Upstream bodies are cut to 200 runes.
func errorMessage(err error) string {
	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		body := strings.TrimSpace(statusErr.Body)
		if runes := []rune(body); len(runes) > maxErrorBodyRunes {
			body = string(runes[:maxErrorBodyRunes])
		}
		if body == "" {
			return fmt.Sprintf("AI request failed with status %d", statusErr.StatusCode)
		}
		return fmt.Sprintf("AI request failed with status %d: %s", statusErr.StatusCode, body)
	}
	return err.Error()
}

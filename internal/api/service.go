package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"dentaldir/internal/catalog"
	"dentaldir/internal/config"
	"dentaldir/internal/joblock"
	"dentaldir/internal/logging"
	"dentaldir/internal/regen"
	"dentaldir/internal/search"
	"dentaldir/internal/services"
	"dentaldir/internal/store"
)

// Service is the transport-neutral surface shared by the HTTP server and the
// CLI.
type Service struct {
	repo      store.Repository
	processor *regen.Processor
	catalog   *catalog.Catalog
	locker    *joblock.Locker
	defaults  config.Regeneration
	logger    *slog.Logger
}

// NewService wires a Service. A nil locker disables per-job locking.
func NewService(cfg *config.Config, repo store.Repository, processor *regen.Processor, cat *catalog.Catalog, locker *joblock.Locker, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		processor: processor,
		catalog:   cat,
		locker:    locker,
		defaults:  cfg.Regeneration,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// RunJob processes a batch to completion while holding the job's lock.
func (s *Service) RunJob(ctx context.Context, req JobRequest) (*regen.Result, error) {
	r := s.regenRequest(req)
	if s.locker != nil {
		lock, err := s.locker.Acquire(r.JobID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				s.logger.Warn("job lock release failed",
					logging.String(logging.FieldJobID, r.JobID),
					logging.Error(err),
				)
			}
		}()
	}
	return s.processor.ProcessJob(ctx, r)
}

// regenRequest fills configured defaults and assigns a job id so the lock
// can be taken before the job row exists. Modes other than auto_apply and
// quality_gated pass through and run as dry runs.
func (s *Service) regenRequest(req JobRequest) regen.Request {
	mode := strings.ToLower(strings.TrimSpace(req.ApplyMode))
	if mode == "" {
		mode = s.defaults.DefaultApplyMode
	}
	threshold := s.defaults.DefaultQualityThreshold
	if req.QualityThreshold != nil {
		threshold = *req.QualityThreshold
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return regen.Request{
		JobID:            jobID,
		PageIDs:          req.PageIDs,
		Config:           req.Config,
		ApplyMode:        mode,
		QualityThreshold: threshold,
		CustomPrompt:     req.CustomPrompt,
	}
}

// Rollback restores a content version.
func (s *Service) Rollback(ctx context.Context, versionID string) (*store.ContentVersion, error) {
	return s.processor.RollbackPage(ctx, versionID)
}

// Job fetches one job.
func (s *Service) Job(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.GetJob(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "get job", "Failed to load job", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get job", fmt.Sprintf("job %s not found", id), nil)
	}
	dto := FromJob(job)
	return &dto, nil
}

// Jobs lists recent jobs, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]Job, error) {
	jobs, err := s.repo.ListJobs(ctx, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "list jobs", "Failed to list jobs", err)
	}
	return FromJobs(jobs), nil
}

// Items lists the processed pages of a job in processing order.
func (s *Service) Items(ctx context.Context, jobID string) ([]JobItem, error) {
	if _, err := s.Job(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "list items", "Failed to list job items", err)
	}
	return FromJobItems(items), nil
}

// Versions lists the content versions of a page, newest first.
func (s *Service) Versions(ctx context.Context, pageID string) ([]ContentVersion, error) {
	pageID = strings.TrimSpace(pageID)
	page, err := s.repo.GetPage(ctx, pageID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "list versions", "Failed to load page", err)
	}
	if page == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "list versions", fmt.Sprintf("page %s not found", pageID), nil)
	}
	versions, err := s.repo.ListVersions(ctx, pageID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "list versions", "Failed to list versions", err)
	}
	return FromVersions(versions), nil
}

// Search ranks autocomplete options of kind against query.
func (s *Service) Search(ctx context.Context, kind, query string) ([]search.ScoredOption, error) {
	k, err := catalog.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	results, err := s.catalog.Search(ctx, k, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []search.ScoredOption{}
	}
	return results, nil
}

// Ping checks that storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

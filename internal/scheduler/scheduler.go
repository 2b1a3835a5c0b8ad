// Package scheduler runs the periodic sweep that fails regeneration jobs
// abandoned mid-run by a crashed or cancelled invocation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dentaldir/internal/config"
	"dentaldir/internal/logging"
	"dentaldir/internal/notifications"
)

// Reclaimer fails running jobs whose last progress predates cutoff.
type Reclaimer interface {
	ReclaimStaleJobs(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Sweeper wraps robfig/cron and owns the stale job sweep.
type Sweeper struct {
	cron       *cron.Cron
	repo       Reclaimer
	notifier   notifications.Service
	logger     *slog.Logger
	spec       string
	staleAfter time.Duration
	now        func() time.Time
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithNotifier publishes a completion event for every reclaimed job.
func WithNotifier(n notifications.Service) Option {
	return func(s *Sweeper) { s.notifier = n }
}

// WithClock overrides the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Sweeper from the regeneration settings in cfg.
func New(cfg *config.Config, repo Reclaimer, logger *slog.Logger, opts ...Option) *Sweeper {
	logger = logging.NewComponentLogger(logger, "scheduler")
	s := &Sweeper{
		cron:       cron.New(cron.WithLogger(cronLogger{logger: logger})),
		repo:       repo,
		logger:     logger,
		spec:       strings.TrimSpace(cfg.Regeneration.SweepSpec),
		staleAfter: cfg.StaleJobTimeout(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the sweep and starts the cron loop. One sweep runs
// immediately so jobs left over from a previous process are failed without
// waiting for the first tick.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.spec == "" {
		return fmt.Errorf("sweep schedule is empty")
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("cron add sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("stale job sweeper started",
		logging.String("schedule", s.spec),
		logging.Duration("stale_after", s.staleAfter),
	)
	go s.run(ctx)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("stale job sweeper stopped")
}

// Sweep fails every running job idle for longer than the stale timeout and
// returns the ids it reclaimed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	cutoff := s.now().Add(-s.staleAfter)
	ids, err := s.repo.ReclaimStaleJobs(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	for _, id := range ids {
		s.logger.Warn("stale job reclaimed",
			logging.String(logging.FieldJobID, id),
			logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		)
		notifications.Publish(ctx, s.notifier, s.logger, notifications.EventJobCompleted, notifications.Payload{
			"jobId":  id,
			"status": "failed",
			"reason": "abandoned",
		})
	}
	return ids, nil
}

func (s *Sweeper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ids, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("stale job sweep failed", logging.Error(err), logging.ErrorKind(err))
		return
	}
	s.logger.Debug("stale job sweep finished", logging.Int("reclaimed", len(ids)))
}

// cronLogger routes robfig/cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}

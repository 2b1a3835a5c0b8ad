package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dentaldir/internal/notifications"
	"dentaldir/internal/scheduler"
	"dentaldir/internal/store"
	"dentaldir/internal/testsupport"
)

type recordingReclaimer struct {
	cutoffs []time.Time
	ids     []string
	err     error
}

func (r *recordingReclaimer) ReclaimStaleJobs(_ context.Context, cutoff time.Time) ([]string, error) {
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.ids, r.err
}

type recordingNotifier struct {
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.events = append(n.events, event)
	return nil
}

func TestSweepUsesStaleTimeoutCutoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Regeneration.StaleJobMinutes = 30
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &recordingReclaimer{ids: []string{"a", "b"}}
	notifier := &recordingNotifier{}

	sweeper := scheduler.New(cfg, repo, nil,
		scheduler.WithClock(func() time.Time { return now }),
		scheduler.WithNotifier(notifier),
	)
	ids, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 reclaimed ids, got %v", ids)
	}
	if want := now.Add(-30 * time.Minute); !repo.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %s, want %s", repo.cutoffs[0], want)
	}
	if len(notifier.events) != 2 || notifier.events[0] != notifications.EventJobCompleted {
		t.Fatalf("unexpected events %v", notifier.events)
	}
}

func TestSweepWrapsRepositoryError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	boom := errors.New("boom")
	sweeper := scheduler.New(cfg, &recordingReclaimer{err: boom}, nil)
	if _, err := sweeper.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSweepReclaimsAbandonedJobInStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &store.Job{Config: store.RegenerationConfig{RegenerateMetaTitle: true, TargetWordCount: 800}}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	job.TotalPages = 1
	if err := st.StartJob(ctx, job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	later := time.Now().Add(2 * time.Hour)
	sweeper := scheduler.New(cfg, st, nil, scheduler.WithClock(func() time.Time { return later }))
	ids, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(ids) != 1 || ids[0] != job.ID {
		t.Fatalf("expected %s reclaimed, got %v", job.ID, ids)
	}
	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != store.JobFailed || len(got.ErrorLog) != 1 {
		t.Fatalf("unexpected job after sweep: status=%s log=%v", got.Status, got.ErrorLog)
	}
}

func TestStartRejectsEmptySchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Regeneration.SweepSpec = " "
	sweeper := scheduler.New(cfg, &recordingReclaimer{}, nil)
	if err := sweeper.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}

func TestStartRunsInitialSweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Regeneration.SweepSpec = "@every 1h"
	repo := &signalReclaimer{called: make(chan struct{}, 1)}
	sweeper := scheduler.New(cfg, repo, nil)
	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sweeper.Stop()

	select {
	case <-repo.called:
	case <-time.After(2 * time.Second):
		t.Fatal("initial sweep did not run")
	}
}

type signalReclaimer struct {
	called chan struct{}
}

func (r *signalReclaimer) ReclaimStaleJobs(context.Context, time.Time) ([]string, error) {
	select {
	case r.called <- struct{}{}:
	default:
	}
	return nil, nil
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"dentaldir/internal/store"
)

const jobColumns = "id, status, total_pages, processed_pages, successful_pages, failed_pages, apply_mode, quality_threshold, config, error_log, started_at, completed_at, created_at, updated_at"

// CreateJob inserts a new pending job, generating an id when missing.
func (s *Store) CreateJob(ctx context.Context, job *store.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		job.ID = newID()
	}
	if job.Status == "" {
		job.Status = store.JobPending
	}
	configJSON, err := jsonArg(job.Config)
	if err != nil {
		return err
	}
	errorLog, err := jsonArg(nonNilLog(job.ErrorLog))
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO regeneration_jobs (id, status, total_pages, apply_mode, quality_threshold, config, error_log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		job.ID, string(job.Status), job.TotalPages, job.ApplyMode, job.QualityThreshold, configJSON, errorLog,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*store.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM regeneration_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*store.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM regeneration_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StartJob begins a fresh run of job, replacing its run settings and
// dropping items from earlier runs in one transaction.
func (s *Store) StartJob(ctx context.Context, job *store.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	configJSON, err := jsonArg(job.Config)
	if err != nil {
		return err
	}
	var started time.Time
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE regeneration_jobs
			 SET status = $1, total_pages = $2, processed_pages = 0, successful_pages = 0,
			     failed_pages = 0, apply_mode = $3, quality_threshold = $4, config = $5,
			     error_log = '[]'::jsonb, started_at = now(), completed_at = NULL, updated_at = now()
			 WHERE id = $6
			 RETURNING started_at`,
			string(store.JobRunning), job.TotalPages, job.ApplyMode, job.QualityThreshold, configJSON, job.ID,
		).Scan(&started)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM regeneration_job_items WHERE job_id = $1`, job.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}
	job.ResetForRun(started)
	return nil
}

// FinishJob records the terminal status and completion time.
func (s *Store) FinishJob(ctx context.Context, id string, status store.JobStatus) (*store.Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finish job %s: %q is not a terminal status", id, status)
	}
	job, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE regeneration_jobs SET status = $1, completed_at = now(), updated_at = now()
		 WHERE id = $2 RETURNING `+jobColumns,
		string(status), id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("finish job %s: %w", id, store.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finish job %s: %w", id, err)
	}
	return job, nil
}

// ReclaimStaleJobs fails running jobs whose heartbeat is older than cutoff.
func (s *Store) ReclaimStaleJobs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE regeneration_jobs
		 SET status = $1,
		     error_log = error_log || jsonb_build_array('job abandoned: no progress since ' ||
		         to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')),
		     completed_at = now(), updated_at = now()
		 WHERE status = $2 AND updated_at < $3
		 RETURNING id`,
		string(store.JobFailed), string(store.JobRunning), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return ids, nil
}

func scanJob(row pgx.Row) (*store.Job, error) {
	var (
		job        store.Job
		status     string
		configJSON []byte
		errorLog   []byte
	)
	if err := row.Scan(
		&job.ID, &status, &job.TotalPages, &job.ProcessedPages, &job.SuccessfulPages, &job.FailedPages,
		&job.ApplyMode, &job.QualityThreshold, &configJSON, &errorLog,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = store.JobStatus(status)
	if err := decodeJSON(configJSON, &job.Config); err != nil {
		return nil, err
	}
	if err := decodeJSON(errorLog, &job.ErrorLog); err != nil {
		return nil, err
	}
	return &job, nil
}

func nonNilLog(entries []string) []string {
	if entries == nil {
		return []string{}
	}
	return entries
}

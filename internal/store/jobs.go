package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, status, total_pages, processed_pages, successful_pages, failed_pages, apply_mode, quality_threshold, config_json, error_log_json, started_at, completed_at, created_at, updated_at"

// CreateJob inserts a new job. A missing id is generated and status
// defaults to pending.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	configJSON, err := encodeJSON(job.Config)
	if err != nil {
		return err
	}
	errorLog, err := encodeJSON(job.ErrorLog)
	if err != nil {
		return err
	}
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = s.execWithRetry(ctx,
		`INSERT INTO regeneration_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Status,
		job.TotalPages,
		job.ProcessedPages,
		job.SuccessfulPages,
		job.FailedPages,
		nullableString(job.ApplyMode),
		job.QualityThreshold,
		configJSON,
		errorLog,
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	return getJob(ctx, s.db, id)
}

// ListJobs returns the most recently created jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM regeneration_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StartJob begins a fresh run of job. The run's apply mode, threshold,
// config and page total replace the stored ones, counters and the error log
// reset, and items from any earlier run are removed so they always describe
// the current run. job is updated to match.
func (s *Store) StartJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	configJSON, err := encodeJSON(job.Config)
	if err != nil {
		return err
	}
	started := s.now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE regeneration_jobs
             SET status = ?, total_pages = ?, processed_pages = 0, successful_pages = 0,
                 failed_pages = 0, apply_mode = ?, quality_threshold = ?, config_json = ?,
                 error_log_json = NULL, started_at = ?, completed_at = NULL, updated_at = ?
             WHERE id = ?`,
			JobRunning, job.TotalPages, nullableString(job.ApplyMode), job.QualityThreshold, configJSON,
			formatTime(started), formatTime(started), job.ID,
		)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrJobNotFound
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM regeneration_job_items WHERE job_id = ?`, job.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}
	job.ResetForRun(started)
	return nil
}

// FinishJob records the terminal status and completion time.
func (s *Store) FinishJob(ctx context.Context, id string, status JobStatus) (*Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finish job %s: %q is not a terminal status", id, status)
	}
	now := formatTime(s.now())
	res, err := s.execWithRetry(ctx,
		`UPDATE regeneration_jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		status, now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("finish job %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("finish job %s: %w", id, ErrJobNotFound)
	}
	return s.GetJob(ctx, id)
}

// ReclaimStaleJobs fails running jobs whose last progress is older than
// cutoff and returns their ids.
func (s *Store) ReclaimStaleJobs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var reclaimed []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		reclaimed = reclaimed[:0]
		rows, err := tx.QueryContext(ctx, `SELECT `+jobColumns+` FROM regeneration_jobs WHERE status = ?`, JobRunning)
		if err != nil {
			return err
		}
		var stale []*Job
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				rows.Close()
				return err
			}
			if job.UpdatedAt.Before(cutoff) {
				stale = append(stale, job)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}

		now := formatTime(s.now())
		for _, job := range stale {
			errorLog, err := encodeJSON(append(job.ErrorLog, AbandonedEntry(job.UpdatedAt)))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE regeneration_jobs
                 SET status = ?, error_log_json = ?, completed_at = ?, updated_at = ?
                 WHERE id = ? AND status = ?`,
				JobFailed, errorLog, now, now, job.ID, JobRunning,
			); err != nil {
				return err
			}
			reclaimed = append(reclaimed, job.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return reclaimed, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, q queryRower, id string) (*Job, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM regeneration_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		status       string
		applyMode    sql.NullString
		configJSON   sql.NullString
		errorLogJSON sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID,
		&status,
		&job.TotalPages,
		&job.ProcessedPages,
		&job.SuccessfulPages,
		&job.FailedPages,
		&applyMode,
		&job.QualityThreshold,
		&configJSON,
		&errorLogJSON,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(status)
	job.ApplyMode = applyMode.String
	if err := decodeJSON(configJSON, &job.Config); err != nil {
		return nil, err
	}
	if err := decodeJSON(errorLogJSON, &job.ErrorLog); err != nil {
		return nil, err
	}
	job.StartedAt = parseNullTime(startedRaw)
	job.CompletedAt = parseNullTime(completedRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"dentaldir/internal/store"
)

const itemColumns = "id, job_id, page_id, status, before_snapshot, after_snapshot, quality_score, content_similarity, changes_applied, applied_at, used_fallback, error_message, created_at"

// RecordItem inserts a job item and bumps the job counters in one transaction.
func (s *Store) RecordItem(ctx context.Context, item *store.JobItem) (*store.Job, error) {
	if item == nil || strings.TrimSpace(item.JobID) == "" {
		return nil, errors.New("job item requires a job id")
	}
	if item.Status != store.ItemCompleted && item.Status != store.ItemFailed {
		return nil, fmt.Errorf("job item status %q is invalid", item.Status)
	}
	before, err := snapshotArg(item.BeforeSnapshot)
	if err != nil {
		return nil, err
	}
	after, err := snapshotArg(item.AfterSnapshot)
	if err != nil {
		return nil, err
	}
	var logEntry any
	if item.Status == store.ItemFailed {
		logEntry, err = jsonArg([]string{store.ItemErrorEntry(item.PageID, item.ErrorMessage)})
		if err != nil {
			return nil, err
		}
	}
	successDelta, failDelta := 1, 0
	if item.Status == store.ItemFailed {
		successDelta, failDelta = 0, 1
	}

	var job *store.Job
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO regeneration_job_items (
			     job_id, page_id, status, before_snapshot, after_snapshot, quality_score,
			     content_similarity, changes_applied, applied_at, used_fallback, error_message)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id, created_at`,
			item.JobID, item.PageID, string(item.Status), before, after, item.QualityScore,
			item.ContentSimilarity, item.ChangesApplied, item.AppliedAt, item.UsedFallback, item.ErrorMessage,
		).Scan(&item.ID, &item.CreatedAt); err != nil {
			var pgErr interface{ SQLState() string }
			if errors.As(err, &pgErr) && pgErr.SQLState() == "23503" {
				return fmt.Errorf("record item for job %s: %w", item.JobID, store.ErrJobNotFound)
			}
			return fmt.Errorf("insert job item: %w", err)
		}
		updated, err := scanJob(tx.QueryRow(ctx,
			`UPDATE regeneration_jobs
			 SET processed_pages = processed_pages + 1,
			     successful_pages = successful_pages + $1,
			     failed_pages = failed_pages + $2,
			     error_log = CASE WHEN $3::jsonb IS NULL THEN error_log ELSE error_log || $3::jsonb END,
			     updated_at = now()
			 WHERE id = $4
			 RETURNING `+jobColumns,
			successDelta, failDelta, logEntry, item.JobID,
		))
		if err != nil {
			return fmt.Errorf("update job counters: %w", err)
		}
		job = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListItems returns a job's items in processing order.
func (s *Store) ListItems(ctx context.Context, jobID string) ([]*store.JobItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM regeneration_job_items WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job items: %w", err)
	}
	defer rows.Close()

	var items []*store.JobItem
	for rows.Next() {
		var (
			item   store.JobItem
			status string
			before []byte
			after  []byte
		)
		if err := rows.Scan(
			&item.ID, &item.JobID, &item.PageID, &status, &before, &after, &item.QualityScore,
			&item.ContentSimilarity, &item.ChangesApplied, &item.AppliedAt, &item.UsedFallback, &item.ErrorMessage, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list job items scan: %w", err)
		}
		item.Status = store.ItemStatus(status)
		if item.BeforeSnapshot, err = decodeSnapshot(before); err != nil {
			return nil, err
		}
		if item.AfterSnapshot, err = decodeSnapshot(after); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func snapshotArg(content *store.PageContent) (any, error) {
	if content == nil {
		return nil, nil
	}
	return jsonArg(content)
}

func decodeSnapshot(raw []byte) (*store.PageContent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var content store.PageContent
	if err := decodeJSON(raw, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

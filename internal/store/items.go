package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const itemColumns = "id, job_id, page_id, status, before_snapshot, after_snapshot, quality_score, content_similarity, changes_applied, applied_at, used_fallback, error_message, created_at"

// RecordItem inserts a job item and bumps the owning job's counters in the
// same transaction, so pollers never observe an item without its count.
// Failed items append "Page <id>: <message>" to the job error log.
func (s *Store) RecordItem(ctx context.Context, item *JobItem) (*Job, error) {
	if item == nil || strings.TrimSpace(item.JobID) == "" {
		return nil, errors.New("job item requires a job id")
	}
	if item.Status != ItemCompleted && item.Status != ItemFailed {
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

	var job *Job
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getJob(ctx, tx, item.JobID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("record item for job %s: %w", item.JobID, ErrJobNotFound)
		}

		now := s.now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO regeneration_job_items (
                 job_id, page_id, status, before_snapshot, after_snapshot, quality_score,
                 content_similarity, changes_applied, applied_at, used_fallback, error_message, created_at
             ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.JobID,
			item.PageID,
			item.Status,
			before,
			after,
			item.QualityScore,
			item.ContentSimilarity,
			boolToInt(item.ChangesApplied),
			nullableTime(item.AppliedAt),
			boolToInt(item.UsedFallback),
			nullableString(item.ErrorMessage),
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert job item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		current.ProcessedPages++
		if item.Status == ItemCompleted {
			current.SuccessfulPages++
		} else {
			current.FailedPages++
			current.ErrorLog = append(current.ErrorLog, ItemErrorEntry(item.PageID, item.ErrorMessage))
		}
		errorLog, err := encodeJSON(current.ErrorLog)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE regeneration_jobs
             SET processed_pages = ?, successful_pages = ?, failed_pages = ?,
                 error_log_json = ?, updated_at = ?
             WHERE id = ?`,
			current.ProcessedPages,
			current.SuccessfulPages,
			current.FailedPages,
			errorLog,
			formatTime(now),
			current.ID,
		); err != nil {
			return fmt.Errorf("update job counters: %w", err)
		}

		item.ID = id
		item.CreatedAt = now
		current.UpdatedAt = now
		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListItems returns the items of a job in processing order.
func (s *Store) ListItems(ctx context.Context, jobID string) ([]*JobItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM regeneration_job_items WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job items: %w", err)
	}
	defer rows.Close()

	var items []*JobItem
	for rows.Next() {
		item, err := scanJobItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanJobItem(scanner interface{ Scan(dest ...any) error }) (*JobItem, error) {
	var (
		item           JobItem
		status         string
		before         sql.NullString
		after          sql.NullString
		changesApplied int
		appliedRaw     sql.NullString
		usedFallback   int
		errorMessage   sql.NullString
		createdRaw     string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&item.PageID,
		&status,
		&before,
		&after,
		&item.QualityScore,
		&item.ContentSimilarity,
		&changesApplied,
		&appliedRaw,
		&usedFallback,
		&errorMessage,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	var err error
	item.Status = ItemStatus(status)
	if item.BeforeSnapshot, err = decodeSnapshot(before); err != nil {
		return nil, err
	}
	if item.AfterSnapshot, err = decodeSnapshot(after); err != nil {
		return nil, err
	}
	item.ChangesApplied = changesApplied != 0
	item.AppliedAt = parseNullTime(appliedRaw)
	item.UsedFallback = usedFallback != 0
	item.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return &item, nil
}

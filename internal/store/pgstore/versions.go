package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"dentaldir/internal/store"
)

const versionColumns = "id, page_id, job_id, version_type, content_before, content_after, changed_by, is_rolled_back, rolled_back_at, created_at"

// ApplyContent updates the page and inserts version in one transaction.
func (s *Store) ApplyContent(ctx context.Context, pageID string, content store.PageContent, version *store.ContentVersion) error {
	if version == nil {
		return errors.New("content version is required")
	}
	version.PageID = pageID
	if strings.TrimSpace(version.ID) == "" {
		version.ID = newID()
	}
	if version.VersionType == "" {
		version.VersionType = store.VersionTypeAIRegeneration
	}
	before, err := jsonArg(version.ContentBefore)
	if err != nil {
		return err
	}
	after, err := jsonArg(version.ContentAfter)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := writePageContent(ctx, tx, pageID, content); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO content_versions (id, page_id, job_id, version_type, content_before, content_after, changed_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING created_at`,
			version.ID, version.PageID, version.JobID, version.VersionType, before, after, version.ChangedBy,
		).Scan(&version.CreatedAt); err != nil {
			return fmt.Errorf("insert content version: %w", err)
		}
		return nil
	})
}

// GetVersion fetches a content version by id.
func (s *Store) GetVersion(ctx context.Context, id string) (*store.ContentVersion, error) {
	version, err := scanVersion(s.pool.QueryRow(ctx, `SELECT `+versionColumns+` FROM content_versions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content version: %w", err)
	}
	return version, nil
}

// ListVersions returns a page's versions, newest first.
func (s *Store) ListVersions(ctx context.Context, pageID string) ([]*store.ContentVersion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM content_versions WHERE page_id = $1 ORDER BY created_at DESC`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list content versions: %w", err)
	}
	defer rows.Close()

	var versions []*store.ContentVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("list content versions scan: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// RollbackVersion restores content_before and marks the version rolled back.
// Unknown versions return nil, nil.
func (s *Store) RollbackVersion(ctx context.Context, id string) (*store.ContentVersion, error) {
	var version *store.ContentVersion
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanVersion(tx.QueryRow(ctx,
			`SELECT `+versionColumns+` FROM content_versions WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load content version: %w", err)
		}
		if err := writePageContent(ctx, tx, current.PageID, current.ContentBefore); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`UPDATE content_versions SET is_rolled_back = TRUE, rolled_back_at = now()
			 WHERE id = $1 RETURNING rolled_back_at`, id,
		).Scan(&current.RolledBackAt); err != nil {
			return fmt.Errorf("mark version rolled back: %w", err)
		}
		current.IsRolledBack = true
		version = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func scanVersion(row pgx.Row) (*store.ContentVersion, error) {
	var (
		version store.ContentVersion
		before  []byte
		after   []byte
	)
	if err := row.Scan(
		&version.ID, &version.PageID, &version.JobID, &version.VersionType, &before, &after,
		&version.ChangedBy, &version.IsRolledBack, &version.RolledBackAt, &version.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(before, &version.ContentBefore); err != nil {
		return nil, err
	}
	if err := decodeJSON(after, &version.ContentAfter); err != nil {
		return nil, err
	}
	return &version, nil
}

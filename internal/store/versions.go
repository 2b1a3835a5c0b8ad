package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const versionColumns = "id, page_id, job_id, version_type, content_before, content_after, changed_by, is_rolled_back, rolled_back_at, created_at"

// ApplyContent writes content onto the page and records version in the same
// transaction. Either both land or neither does.
func (s *Store) ApplyContent(ctx context.Context, pageID string, content PageContent, version *ContentVersion) error {
	if version == nil {
		return errors.New("content version is required")
	}
	version.PageID = pageID
	if strings.TrimSpace(version.ID) == "" {
		version.ID = uuid.NewString()
	}
	if version.VersionType == "" {
		version.VersionType = VersionTypeAIRegeneration
	}
	before, err := encodeJSON(version.ContentBefore)
	if err != nil {
		return err
	}
	after, err := encodeJSON(version.ContentAfter)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.writePageContent(ctx, tx, pageID, content); err != nil {
			return err
		}
		version.CreatedAt = s.now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO content_versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
			version.ID,
			version.PageID,
			nullableString(version.JobID),
			version.VersionType,
			before,
			after,
			nullableString(version.ChangedBy),
			formatTime(version.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert content version: %w", err)
		}
		return nil
	})
}

// GetVersion fetches a content version by id.
func (s *Store) GetVersion(ctx context.Context, id string) (*ContentVersion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM content_versions WHERE id = ?`, id)
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content version: %w", err)
	}
	return version, nil
}

// ListVersions returns a page's versions, newest first.
func (s *Store) ListVersions(ctx context.Context, pageID string) ([]*ContentVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM content_versions WHERE page_id = ? ORDER BY created_at DESC, rowid DESC`,
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list content versions: %w", err)
	}
	defer rows.Close()

	var versions []*ContentVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// RollbackVersion restores the version's content_before onto its page and
// marks it rolled back. Rolling back twice re-applies the same snapshot.
// Unknown versions return nil, nil.
func (s *Store) RollbackVersion(ctx context.Context, id string) (*ContentVersion, error) {
	var version *ContentVersion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM content_versions WHERE id = ?`, id)
		current, err := scanVersion(row)
		if errors.Is(err, sql.ErrNoRows) {
			version = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("load content version: %w", err)
		}
		if err := s.writePageContent(ctx, tx, current.PageID, current.ContentBefore); err != nil {
			return err
		}
		now := s.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE content_versions SET is_rolled_back = 1, rolled_back_at = ? WHERE id = ?`,
			formatTime(now), current.ID,
		); err != nil {
			return fmt.Errorf("mark version rolled back: %w", err)
		}
		current.IsRolledBack = true
		current.RolledBackAt = &now
		version = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func scanVersion(scanner interface{ Scan(dest ...any) error }) (*ContentVersion, error) {
	var (
		version      ContentVersion
		jobID        sql.NullString
		before       sql.NullString
		after        sql.NullString
		changedBy    sql.NullString
		rolledBack   int
		rolledBackAt sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(
		&version.ID,
		&version.PageID,
		&jobID,
		&version.VersionType,
		&before,
		&after,
		&changedBy,
		&rolledBack,
		&rolledBackAt,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	version.JobID = jobID.String
	version.ChangedBy = changedBy.String
	version.IsRolledBack = rolledBack != 0
	version.RolledBackAt = parseNullTime(rolledBackAt)
	if err := decodeJSON(before, &version.ContentBefore); err != nil {
		return nil, err
	}
	if err := decodeJSON(after, &version.ContentAfter); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		version.CreatedAt = created
	}
	return &version, nil
}

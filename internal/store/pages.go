package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const pageColumns = "id, slug, page_type, h1, meta_title, meta_description, content, sections_json, faq_json, created_at, updated_at"

// UpsertPage inserts a page or replaces the content of an existing page with
// the same id.
func (s *Store) UpsertPage(ctx context.Context, page *Page) error {
	if page == nil {
		return errors.New("page is nil")
	}
	page.ID = strings.TrimSpace(page.ID)
	page.Slug = strings.Trim(strings.TrimSpace(page.Slug), "/")
	if page.ID == "" || page.Slug == "" {
		return errors.New("page id and slug are required")
	}
	if page.PageType == "" {
		page.PageType = "location"
	}
	sections, err := encodeJSON(page.Sections)
	if err != nil {
		return err
	}
	faq, err := encodeJSON(page.FAQ)
	if err != nil {
		return err
	}
	now := s.now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	_, err = s.execWithRetry(ctx,
		`INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             slug = excluded.slug, page_type = excluded.page_type, h1 = excluded.h1,
             meta_title = excluded.meta_title, meta_description = excluded.meta_description,
             content = excluded.content, sections_json = excluded.sections_json,
             faq_json = excluded.faq_json, updated_at = excluded.updated_at`,
		page.ID,
		page.Slug,
		page.PageType,
		nullableString(page.H1),
		nullableString(page.MetaTitle),
		nullableString(page.MetaDescription),
		nullableString(page.Content),
		sections,
		faq,
		formatTime(page.CreatedAt),
		formatTime(page.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", page.ID, err)
	}
	return nil
}

// GetPage fetches a page by id.
func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

// ListPages returns every page ordered by slug.
func (s *Store) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(scanner interface{ Scan(dest ...any) error }) (*Page, error) {
	var (
		page            Page
		h1              sql.NullString
		metaTitle       sql.NullString
		metaDescription sql.NullString
		content         sql.NullString
		sections        sql.NullString
		faq             sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&page.ID,
		&page.Slug,
		&page.PageType,
		&h1,
		&metaTitle,
		&metaDescription,
		&content,
		&sections,
		&faq,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	page.H1 = h1.String
	page.MetaTitle = metaTitle.String
	page.MetaDescription = metaDescription.String
	page.Content = content.String
	if err := decodeJSON(sections, &page.Sections); err != nil {
		return nil, err
	}
	if err := decodeJSON(faq, &page.FAQ); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		page.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		page.UpdatedAt = updated
	}
	return &page, nil
}

// writePageContent replaces the editable columns of a page inside tx.
func (s *Store) writePageContent(ctx context.Context, tx *sql.Tx, pageID string, content PageContent) error {
	sections, err := encodeJSON(content.Sections)
	if err != nil {
		return err
	}
	faq, err := encodeJSON(content.FAQ)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE pages
         SET h1 = ?, meta_title = ?, meta_description = ?, content = ?,
             sections_json = ?, faq_json = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(content.H1),
		nullableString(content.MetaTitle),
		nullableString(content.MetaDescription),
		nullableString(content.Content),
		sections,
		faq,
		formatTime(s.now()),
		pageID,
	)
	if err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update page %s: %w", pageID, ErrPageNotFound)
	}
	return nil
}

// Package pgstore implements store.Repository on Postgres through a pgx
// connection pool. Schema is created on Open.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dentaldir/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store persists pages, jobs and versions in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and ensures the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres database url is empty")
	}
	pgConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pgConfig.MinConns = 1

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, pgConfig)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

const pageColumns = "id, slug, page_type, h1, meta_title, meta_description, content, sections, faq, created_at, updated_at"

// UpsertPage inserts a page or replaces the content of an existing one.
func (s *Store) UpsertPage(ctx context.Context, page *store.Page) error {
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
	sections, err := jsonArg(page.Sections)
	if err != nil {
		return err
	}
	faq, err := jsonArg(page.FAQ)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO pages (id, slug, page_type, h1, meta_title, meta_description, content, sections, faq)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		     slug = EXCLUDED.slug, page_type = EXCLUDED.page_type, h1 = EXCLUDED.h1,
		     meta_title = EXCLUDED.meta_title, meta_description = EXCLUDED.meta_description,
		     content = EXCLUDED.content, sections = EXCLUDED.sections, faq = EXCLUDED.faq,
		     updated_at = now()
		 RETURNING created_at, updated_at`,
		page.ID, page.Slug, page.PageType, page.H1, page.MetaTitle, page.MetaDescription,
		page.Content, sections, faq,
	).Scan(&page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", page.ID, err)
	}
	return nil
}

// GetPage fetches a page by id.
func (s *Store) GetPage(ctx context.Context, id string) (*store.Page, error) {
	page, err := scanPage(s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

// ListPages returns every page ordered by slug.
func (s *Store) ListPages(ctx context.Context) ([]*store.Page, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []*store.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("list pages scan: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(row pgx.Row) (*store.Page, error) {
	var (
		page     store.Page
		sections []byte
		faq      []byte
	)
	if err := row.Scan(
		&page.ID, &page.Slug, &page.PageType, &page.H1, &page.MetaTitle, &page.MetaDescription,
		&page.Content, &sections, &faq, &page.CreatedAt, &page.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(sections, &page.Sections); err != nil {
		return nil, err
	}
	if err := decodeJSON(faq, &page.FAQ); err != nil {
		return nil, err
	}
	return &page, nil
}

func writePageContent(ctx context.Context, tx pgx.Tx, pageID string, content store.PageContent) error {
	sections, err := jsonArg(content.Sections)
	if err != nil {
		return err
	}
	faq, err := jsonArg(content.FAQ)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE pages
		 SET h1 = $1, meta_title = $2, meta_description = $3, content = $4,
		     sections = $5, faq = $6, updated_at = now()
		 WHERE id = $7`,
		content.H1, content.MetaTitle, content.MetaDescription, content.Content, sections, faq, pageID,
	)
	if err != nil {
		return fmt.Errorf("update page %s: %w", pageID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update page %s: %w", pageID, store.ErrPageNotFound)
	}
	return nil
}

// jsonArg encodes value for a JSONB parameter; nil slices become NULL.
func jsonArg(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func decodeJSON(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

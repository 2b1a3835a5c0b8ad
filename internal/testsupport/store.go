package testsupport

import (
	"context"
	"testing"

	"dentaldir/internal/config"
	"dentaldir/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedPage inserts a page with a little existing copy for tests.
func SeedPage(t testing.TB, st store.Repository, id, slug string) *store.Page {
	t.Helper()

	page := &store.Page{
		ID:   id,
		Slug: slug,
		PageContent: store.PageContent{
			H1:              "Dentists in " + slug,
			MetaTitle:       "Old title",
			MetaDescription: "Old description",
			Content:         "<p>Old content</p>",
			Sections:        []store.Section{{Heading: "Old", Body: "Old body"}},
			FAQ:             []store.FAQ{{Question: "Old?", Answer: "Old."}},
		},
	}
	if err := st.UpsertPage(context.Background(), page); err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	return page
}

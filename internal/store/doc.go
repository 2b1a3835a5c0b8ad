// Package store persists directory pages, regeneration jobs, their items
// and content versions in SQLite.
//
// Every job item insert bumps the owning job's counters in the same
// transaction, and applying generated content writes the page and its
// ContentVersion atomically. Readers can poll job progress while a batch is
// running; the database runs in WAL mode.
//
// Getters return nil, nil when the record does not exist. The Repository
// interface is shared with the Postgres backend in store/pgstore.
package store

// Package regen implements batch SEO content regeneration.
//
// A Processor walks a job's page ids in order. For each page it snapshots the
// current content, asks the AI endpoint for new copy (retrying with doubling
// backoff while the endpoint is rate limited and falling back to template
// copy when it stays limited), scores the result, and applies it according to
// the job's apply mode. Applying writes the page and a ContentVersion in one
// transaction so RollbackPage can restore the previous content.
//
// Every page produces one job item and bumps the job counters immediately, so
// pollers see progress mid-batch.
package regen

// Package api exposes regeneration jobs, content versions and autocomplete
// search to HTTP callers and the CLI.
//
// Service is the transport-neutral layer: it applies configured defaults to
// job requests, serializes runs of the same job with a per-job lock and maps
// store records into response types. Server mounts Service on a gin router
// with CORS, optional bearer auth, per-caller rate limiting and request
// logging.
//
// # Endpoints
//
// POST /functions/regenerate dispatches on the "action" field:
// "process_job" runs a batch synchronously and "rollback_page" restores a
// content version. GET /api/jobs/:id, /api/jobs/:id/items,
// /api/pages/:id/versions and /api/search serve pollers and admin UIs.
// GET /health reports storage reachability.
//
// # Errors
//
// Every failure is answered with {"error": "..."}. Validation failures map
// to 400, unknown records to 404, a job already running to 409 and anything
// else to 500.
package api

// Package logging assembles structured slog loggers used across dentaldir.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag lines with job IDs, page IDs and correlation IDs.
// The console handler lifts the component, job and page onto the front of the
// line so a batch run reads top to bottom. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging

// Package services defines shared utilities consumed by the regeneration
// pipeline, the HTTP surface and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, page IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify which maps
//     wrapped errors onto the reactions callers need (reject input, report
//     missing, retry, fail).
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform.
package services

// Package config loads, normalizes, and validates dentaldir configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DENTALDIR_LLM_API_KEY, DATABASE_URL and REDIS_URL. The Config type
// centralizes every knob the CLI and HTTP server need, so storage, AI
// credentials and regeneration throttling are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

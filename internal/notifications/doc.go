// Package notifications delivers regeneration job events via pluggable
// transports.
//
// Redis pub/sub receives every event, including per-item progress, so a
// dashboard can follow a batch live. ntfy receives only completion and
// rollback events. With neither configured the service is a no-op. Callers
// depend only on the Service interface and should treat publish failures as
// non-fatal (see Publish).
package notifications

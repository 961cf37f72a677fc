// Package services defines shared utilities consumed by the ingestion and
// query paths.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and external work
//     item ids for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into validation, not-found, storage, and computation kinds so the
//     transport layer can map them without inspecting messages.
//
// Use these helpers when wiring new code so error handling and observability
// stay uniform across the service.
package services

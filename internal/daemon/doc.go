// Package daemon coordinates the long-running devopsmirror server.
//
// It wires configuration, the work item store, the WorkItemService, and the
// metrics collector behind an HTTP listener, with flock-based locking to
// prevent two servers sharing one data directory. Handlers translate service
// errors into status codes by their services marker and tag every request
// with a correlation id.
//
// Keep orchestration and transport here: ingestion and query semantics live in
// internal/api and the packages beneath it.
package daemon

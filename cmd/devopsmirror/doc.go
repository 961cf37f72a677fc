// Command devopsmirror runs the work item mirror server and provides CLI
// access to its data.
//
// Query commands (show, time-in-state, list, ingest, health) read the local
// database directly by default. Pass --server to talk to a running server
// over HTTP instead.
package main

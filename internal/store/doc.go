// Package store persists mirrored work items and their state transition
// ledger in SQLite (default) or PostgreSQL.
//
// The Store manages database connections, schema initialization, busy retry,
// and read queries. Writes that must land together run inside InTx, which
// hands callers an explicit *Tx; UpsertWorkItem and RecordTransitionIfNew are
// only reachable through it so an ingest commits both or nothing.
//
// Timestamps are persisted as fixed-width UTC text so lexical order matches
// chronological order on both backends and identical instants produce
// identical dedup keys. Schema changes bump schemaVersion in schema.go.
package store

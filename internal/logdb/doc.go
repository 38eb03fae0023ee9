// Package logdb persists log records in a single append-only SQLite table.
//
// The schema is created on Open (create-if-absent) and never migrated
// destructively. Writes go through Append; the read side serves the query
// surface: predicate queries (newest first), per-field facets, and hourly
// volume stats. Structured context payloads are stored as JSON text and
// deserialized on read.
package logdb

// Package store holds the session's constraint records.
//
// Store is the ordered in-memory record list: insertion order is the display
// order and the rebuild order. Journal is a SQLite edit log of every change
// made to a Store during a session. It is opened on ":memory:" by default,
// so nothing outlives the process.
//
// # Journal ordering
//
// Every entry carries a seq from the session clock. Queries order by
// seq ASC, id ASC COLLATE BINARY so listings are identical across runs.
//
// # Database Configuration
//
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - a single pooled connection, which also keeps an in-memory database alive
//
// Record payloads are stored as canonical JSON produced by ir.MarshalCanonical.
package store

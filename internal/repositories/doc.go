// Package repositories implements SQLite persistence for sessions and curation runs.
//
// Key Implementations:
//   - [SessionRepository] : cached OAuth sessions keyed by account name
//   - [RunRepository] : curation run history with one row per removal
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

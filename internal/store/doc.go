// Package store provides SQLite-backed durable storage for mnemo.
//
// The store holds:
//   - Entries: the append-only ledger of captured text
//   - Projections: tasks, transactions, facts, metrics and projects derived from entries
//   - Daily logs and memory snapshots written by day-close
//   - Narrative memories, the clarity window cache and behavior events
//
// # Invariants
//
// Ledger immutability: triggers abort any UPDATE or DELETE on entries. No
// code path in this package issues either statement against the ledger.
//
// Frozen days: a daily log row with closed = 1 rejects further updates, and
// UNIQUE(day, kind) on memory_snapshots allows one snapshot per close.
//
// Reaction idempotency: UNIQUE(kind, day) on behavior_events. Inserts use
// ON CONFLICT DO NOTHING and report whether a row was written.
//
// Deterministic reads: every list query has an explicit ORDER BY ending in id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: the store is the single writer
package store

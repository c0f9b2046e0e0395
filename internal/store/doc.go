// Package store provides durable storage for credit records and their
// lifecycle events.
//
// Two backends share one contract:
//   - Store: SQLite via mattn/go-sqlite3 (default, single file)
//   - Memory: mutex-guarded maps for tests and the scenario harness
//
// A Postgres backend lives in the postgres subpackage.
//
// # Invariants
//
// Record identity: records.id is the content-derived identifier and the
// primary key. InsertRecord writes the record and its CREATED event in one
// transaction, or nothing.
//
// Event uniqueness: UNIQUE(record_id, event_type) allows at most one event
// of each type per record. A second RETIRED insert fails with
// ErrDuplicateEvent no matter how many writers race.
//
// Event order: events carry a store-assigned seq. Reads return events
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events reference their record
package store

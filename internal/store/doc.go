// Package store provides the SQLite system of record for face requirements,
// reservations, the inventory catalog, downstream tasks and the change log.
//
// # Critical Patterns
//
// Serialized writers
//   - Transactions begin IMMEDIATE (_txlock=immediate), taking the write lock
//     up front so two writers never interleave their reads and updates
//   - The pool holds a single connection; in-process writers queue on it
//
// Conditional updates
//   - Stamping a code uses UPDATE ... WHERE auth_code IS NULL and compares
//     rows affected, so a lost race is detected rather than overwritten
//   - Updating a requirement matches on its version column and bumps it; a
//     stale version fails with ErrStale instead of overwriting a newer edit
//   - Deleting reservations refuses with ErrReferenced while an active task
//     still links them
//
// Deterministic reads
//   - Requirements and reservations are returned in creation order (seq ASC)
//   - Read methods return empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Requirements with reservations cannot be deleted
package store

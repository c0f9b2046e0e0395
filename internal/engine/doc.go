// Package engine implements record identity and reconciliation.
//
// The engine owns the domain rules: canonicalize, derive the identifier,
// decide between created / idempotent / conflict, and guard the
// ACTIVE → RETIRED transition. It holds no locks and keeps no state of its
// own. Storage uniqueness violations are the authoritative signal that a
// concurrent writer got there first:
//
//   - A lost create race is resolved by re-reading and reconciling.
//   - A lost retire race surfaces as ALREADY_RETIRED.
//
// Domain errors are *credit.Error values and are never retried.
// Infrastructure errors are wrapped and returned unchanged.
package engine

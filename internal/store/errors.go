package store

import "errors"

// Sentinel errors shared by every storage backend. The engine converts them
// into domain outcomes.
var (
	// ErrNotFound indicates no record exists for the identifier.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEvent indicates the (record_id, event_type) uniqueness
	// constraint rejected an insert: another writer got there first.
	ErrDuplicateEvent = errors.New("duplicate event for record")
)

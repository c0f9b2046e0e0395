package engine

import "time"

// Clock supplies wall-clock timestamps for created_at columns.
//
// Timestamps are informational only. Event order comes from the
// storage-assigned seq, never from these values.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC at microsecond precision, the
// finest resolution every backend stores.
type SystemClock struct{}

// Now returns time.Now in UTC, truncated to microseconds.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

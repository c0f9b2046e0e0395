package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/offset/internal/credit"
)

// backend is the contract both Store and Memory satisfy.
type backend interface {
	ReadHistory(ctx context.Context, id string) (credit.History, error)
	InsertRecord(ctx context.Context, rec credit.Record, created credit.Event) (bool, error)
	InsertEvent(ctx context.Context, ev credit.Event) (credit.Event, error)
	ListHistories(ctx context.Context) ([]credit.History, error)
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// eachBackend runs fn against SQLite and Memory.
func eachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

// createTestRecord canonicalizes a record with the given serial.
func createTestRecord(t *testing.T, serial string, createdAt time.Time) credit.Record {
	t.Helper()
	c, id, err := credit.IdentifyRaw(credit.RawRecord{
		"project_name":  "Wind Farm",
		"registry":      "Verra",
		"vintage":       2024,
		"quantity":      "500",
		"serial_number": serial,
	})
	if err != nil {
		t.Fatalf("IdentifyRaw() failed: %v", err)
	}
	return credit.Record{ID: id, Canonical: c, CreatedAt: createdAt}
}

// createTestEvent creates an event with minimal required fields.
func createTestEvent(id, recordID string, typ credit.EventType, at time.Time) credit.Event {
	return credit.Event{
		ID:        id,
		RecordID:  recordID,
		Type:      typ,
		CreatedAt: at,
	}
}

// mustInsertRecord inserts rec with a CREATED event and fails if it was not new.
func mustInsertRecord(t *testing.T, b backend, rec credit.Record) {
	t.Helper()
	inserted, err := b.InsertRecord(context.Background(), rec,
		createTestEvent("ev-created-"+rec.SerialNumber, rec.ID, credit.EventCreated, rec.CreatedAt))
	if err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}
	if !inserted {
		t.Fatalf("InsertRecord() inserted = false, want true")
	}
}

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	rec := createTestRecord(t, "VCS-1", baseTime)
	mustInsertRecord(t, s1, rec)
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	h, err := s2.ReadHistory(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ReadHistory() after reopen failed: %v", err)
	}
	if h.Record.SerialNumber != "vcs-1" {
		t.Errorf("SerialNumber = %q, want %q", h.Record.SerialNumber, "vcs-1")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Fatal("Open() with missing parent directory should fail")
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"synchronous":  "1", // NORMAL
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Errorf("pragma check: %v", err)
		}
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.DB().QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_records_created_at'",
	).Scan(&name)
	if err != nil {
		t.Errorf("listing index missing: %v", err)
	}
}

func TestOpen_RejectsNewerSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.DB().Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if s, err := Open(path); err == nil {
		s.Close()
		t.Fatal("Open() accepted a database from a newer schema version")
	}
}

func TestSchema_RejectsUnknownEventType(t *testing.T) {
	s := createTestStore(t)
	rec := createTestRecord(t, "VCS-1", baseTime)
	mustInsertRecord(t, s, rec)

	_, err := s.DB().Exec(
		"INSERT INTO events (id, record_id, event_type, created_at) VALUES ('x', ?, 'TRANSFERRED', ?)",
		rec.ID, formatTime(baseTime),
	)
	if err == nil {
		t.Fatal("CHECK constraint should reject unknown event type")
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil store = %v, want nil", err)
	}
}

func TestErrorClassification(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	if !isSQLiteBusy(busy) {
		t.Error("ErrBusy should be classified as busy")
	}
	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	if !isUniqueViolation(unique) {
		t.Error("ErrConstraintUnique should be classified as unique violation")
	}
	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	if !isForeignKeyViolation(fk) || isUniqueViolation(fk) {
		t.Error("ErrConstraintForeignKey misclassified")
	}
	if isSQLiteBusy(errors.New("plain")) {
		t.Error("plain error should not be busy")
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryOnBusy() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	calls = 0
	plain := errors.New("boom")
	err = retryOnBusy(context.Background(), func() error {
		calls++
		return plain
	})
	if !errors.Is(err, plain) || calls != 1 {
		t.Errorf("non-busy error: err=%v calls=%d, want boom after 1 call", err, calls)
	}

	calls = 0
	err = retryOnBusy(context.Background(), func() error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	if !isSQLiteBusy(err) || calls != busyRetryAttempts {
		t.Errorf("exhausted retries: err=%v calls=%d, want locked after %d calls", err, calls, busyRetryAttempts)
	}
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/offset/internal/credit"
)

// InsertRecord atomically inserts a record together with its CREATED event.
//
// Uses ON CONFLICT(id) DO NOTHING: when a record with the same ID already
// exists nothing is written and inserted=false is returned. The caller
// re-reads and reconciles. Either both rows are committed or neither is.
func (s *Store) InsertRecord(ctx context.Context, rec credit.Record, created credit.Event) (inserted bool, err error) {
	if created.RecordID != rec.ID || created.Type != credit.EventCreated {
		return false, fmt.Errorf("write record: initial event must be CREATED for %s", rec.ID)
	}
	payload, err := MarshalPayload(created.Payload)
	if err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}

	err = retryOnBusy(ctx, func() error {
		inserted = false

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() // No-op if committed

		result, err := tx.ExecContext(ctx, `
			INSERT INTO records
			(id, project_name, registry, vintage, quantity, serial_number, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			rec.ID,
			rec.ProjectName,
			rec.Registry,
			rec.Vintage,
			rec.Quantity,
			rec.SerialNumber,
			formatTime(rec.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Record already exists - leave its history untouched
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(id, record_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			created.ID,
			created.RecordID,
			string(created.Type),
			payload,
			formatTime(created.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert created event: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}
	return inserted, nil
}

// InsertEvent appends an event to an existing record.
//
// UNIQUE(record_id, event_type) is the correctness boundary for lifecycle
// transitions: a violation returns ErrDuplicateEvent. A missing record
// returns ErrNotFound. The returned event carries its assigned Seq.
func (s *Store) InsertEvent(ctx context.Context, ev credit.Event) (credit.Event, error) {
	payload, err := MarshalPayload(ev.Payload)
	if err != nil {
		return credit.Event{}, fmt.Errorf("write event: %w", err)
	}

	var seq int64
	err = retryOnBusy(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO events
			(id, record_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?, ?)
		`,
			ev.ID,
			ev.RecordID,
			string(ev.Type),
			payload,
			formatTime(ev.CreatedAt),
		)
		if err != nil {
			return err
		}
		seq, err = result.LastInsertId()
		return err
	})
	switch {
	case err == nil:
	case isUniqueViolation(err):
		return credit.Event{}, ErrDuplicateEvent
	case isForeignKeyViolation(err):
		return credit.Event{}, ErrNotFound
	default:
		return credit.Event{}, fmt.Errorf("write event: %w", err)
	}

	ev.Seq = seq
	ev.Payload = unmarshalPayload(payload)
	return ev, nil
}

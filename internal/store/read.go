package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/offset/internal/credit"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReadHistory returns a record and its events ordered by creation.
// Lookup and event read happen inside one read transaction so a concurrent
// writer cannot be observed half-way. Returns ErrNotFound if absent.
func (s *Store) ReadHistory(ctx context.Context, id string) (credit.History, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT id, project_name, registry, vintage, quantity, serial_number, created_at
		FROM records
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return credit.History{}, ErrNotFound
	}
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: %w", err)
	}

	events, err := queryEvents(ctx, tx, `
		SELECT seq, id, record_id, event_type, payload, created_at
		FROM events
		WHERE record_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: %w", err)
	}

	return credit.History{Record: rec, Events: events}, nil
}

// ListHistories returns every record with its events.
// Records are ordered by created_at, then id; events by seq.
//
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListHistories(ctx context.Context) ([]credit.History, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list histories: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, project_name, registry, vintage, quantity, serial_number, created_at
		FROM records
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	histories := []credit.History{}
	index := make(map[string]int)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[rec.ID] = len(histories)
		histories = append(histories, credit.History{Record: rec, Events: []credit.Event{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	events, err := queryEvents(ctx, tx, `
		SELECT seq, id, record_id, event_type, payload, created_at
		FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}
	for _, ev := range events {
		if i, ok := index[ev.RecordID]; ok {
			histories[i].Events = append(histories[i].Events, ev)
		}
	}

	return histories, nil
}

func queryEvents(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]credit.Event, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []credit.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanRecord scans a row into a Record. sql.ErrNoRows is returned unwrapped.
func scanRecord(row rowScanner) (credit.Record, error) {
	var rec credit.Record
	var quantity, createdAt string

	err := row.Scan(
		&rec.ID, &rec.ProjectName, &rec.Registry, &rec.Vintage,
		&quantity, &rec.SerialNumber, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.Record{}, err
	}
	if err != nil {
		return credit.Record{}, fmt.Errorf("scan record: %w", err)
	}

	if rec.Quantity, err = normalizeQuantity(quantity); err != nil {
		return credit.Record{}, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return credit.Record{}, err
	}
	return rec, nil
}

// scanEvent scans a row into an Event.
func scanEvent(row rowScanner) (credit.Event, error) {
	var ev credit.Event
	var eventType, createdAt string
	var payload sql.NullString

	if err := row.Scan(&ev.Seq, &ev.ID, &ev.RecordID, &eventType, &payload, &createdAt); err != nil {
		return credit.Event{}, fmt.Errorf("scan event: %w", err)
	}

	ev.Type = credit.EventType(eventType)
	ev.Payload = unmarshalPayload(payload)

	t, err := parseTime(createdAt)
	if err != nil {
		return credit.Event{}, err
	}
	ev.CreatedAt = t
	return ev, nil
}

// Package postgres is the PostgreSQL storage backend. It satisfies the same
// contract as the SQLite store: records are content-addressed and
// UNIQUE(record_id, event_type) rejects a second retirement.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/store"
)

// SQLSTATE codes mapped to store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Pool exposes the underlying pool for tests and maintenance.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// ReadHistory reads a record and its events from one REPEATABLE READ snapshot.
func (s *Store) ReadHistory(ctx context.Context, id string) (credit.History, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := scanRecord(tx.QueryRow(ctx, `
		SELECT id, project_name, registry, vintage, quantity::text, serial_number, created_at
		FROM records
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return credit.History{}, store.ErrNotFound
	}
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT seq, id, record_id, event_type, payload::text, created_at
		FROM events
		WHERE record_id = $1
		ORDER BY seq ASC, id COLLATE "C" ASC
	`, id)
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: query events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return credit.History{}, fmt.Errorf("read history: %w", err)
	}

	return credit.History{Record: rec, Events: events}, nil
}

// InsertRecord inserts rec and its CREATED event in one transaction.
// Returns false and writes nothing when the ID already exists.
func (s *Store) InsertRecord(ctx context.Context, rec credit.Record, created credit.Event) (bool, error) {
	if created.RecordID != rec.ID || created.Type != credit.EventCreated {
		return false, fmt.Errorf("write record: initial event must be CREATED for %s", rec.ID)
	}
	payload, err := store.MarshalPayload(created.Payload)
	if err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("write record: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO records
		(id, project_name, registry, vintage, quantity, serial_number, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.ID, rec.ProjectName, rec.Registry, rec.Vintage,
		rec.Quantity, rec.SerialNumber, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("write record: insert record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, record_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4::json, $5)
	`,
		created.ID, created.RecordID, string(created.Type), payload, created.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("write record: insert created event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("write record: commit: %w", err)
	}
	return true, nil
}

// InsertEvent appends ev. Unique violations map to store.ErrDuplicateEvent
// and a missing record to store.ErrNotFound.
func (s *Store) InsertEvent(ctx context.Context, ev credit.Event) (credit.Event, error) {
	payload, err := store.MarshalPayload(ev.Payload)
	if err != nil {
		return credit.Event{}, fmt.Errorf("write event: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO events (id, record_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4::json, $5)
		RETURNING seq
	`,
		ev.ID, ev.RecordID, string(ev.Type), payload, ev.CreatedAt.UTC(),
	).Scan(&ev.Seq)
	switch {
	case err == nil:
	case hasCode(err, codeUniqueViolation):
		return credit.Event{}, store.ErrDuplicateEvent
	case hasCode(err, codeForeignKeyViolation):
		return credit.Event{}, store.ErrNotFound
	default:
		return credit.Event{}, fmt.Errorf("write event: %w", err)
	}

	if payload.Valid {
		ev.Payload = []byte(payload.String)
	} else {
		ev.Payload = nil
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

// ListHistories returns every record with its events, ordered by
// created_at then id.
func (s *Store) ListHistories(ctx context.Context) ([]credit.History, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("list histories: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, project_name, registry, vintage, quantity::text, serial_number, created_at
		FROM records
		ORDER BY created_at ASC, id COLLATE "C" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list histories: query records: %w", err)
	}

	histories := []credit.History{}
	index := make(map[string]int)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[rec.ID] = len(histories)
		histories = append(histories, credit.History{Record: rec, Events: []credit.Event{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list histories: iterate records: %w", err)
	}

	evRows, err := tx.Query(ctx, `
		SELECT seq, id, record_id, event_type, payload::text, created_at
		FROM events
		ORDER BY seq ASC, id COLLATE "C" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list histories: query events: %w", err)
	}
	events, err := collectEvents(evRows)
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

func scanRecord(row pgx.Row) (credit.Record, error) {
	var rec credit.Record
	var quantity string

	err := row.Scan(
		&rec.ID, &rec.ProjectName, &rec.Registry, &rec.Vintage,
		&quantity, &rec.SerialNumber, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return credit.Record{}, err
	}
	if err != nil {
		return credit.Record{}, fmt.Errorf("scan record: %w", err)
	}

	if rec.Quantity, err = credit.FormatQuantity(quantity); err != nil {
		return credit.Record{}, fmt.Errorf("stored quantity: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func collectEvents(rows pgx.Rows) ([]credit.Event, error) {
	defer rows.Close()

	events := []credit.Event{}
	for rows.Next() {
		var ev credit.Event
		var eventType string
		var payload *string

		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.RecordID, &eventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = credit.EventType(eventType)
		if payload != nil {
			ev.Payload = []byte(*payload)
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/store"
)

//go:generate mockgen -destination=../mocks/storage.go -package=mocks github.com/roach88/offset/internal/engine Storage

// Storage is the persistence contract the engine relies on.
// Implemented by store.Store (SQLite), store.Memory and postgres.Store.
type Storage interface {
	// ReadHistory returns the record and its ordered events from a single
	// consistent read, or store.ErrNotFound.
	ReadHistory(ctx context.Context, id string) (credit.History, error)

	// InsertRecord writes the record and its CREATED event atomically.
	// Returns false, with nothing written, when the ID already exists.
	InsertRecord(ctx context.Context, rec credit.Record, created credit.Event) (bool, error)

	// InsertEvent appends an event. Returns store.ErrDuplicateEvent when an
	// event of the same type exists and store.ErrNotFound for an unknown record.
	InsertEvent(ctx context.Context, ev credit.Event) (credit.Event, error)

	// ListHistories returns every record ordered by created_at, then id.
	ListHistories(ctx context.Context) ([]credit.History, error)
}

// Outcome reports what CreateOrReconcile did.
type Outcome string

const (
	// OutcomeCreated means a new record and CREATED event were written.
	OutcomeCreated Outcome = "created"
	// OutcomeIdempotent means an identical record already existed; nothing was written.
	OutcomeIdempotent Outcome = "idempotent"
)

// Result is the outcome of CreateOrReconcile with the record's current history.
type Result struct {
	Outcome Outcome
	History credit.History
}

// Engine applies the identity and lifecycle rules on top of a Storage.
// Safe for concurrent use if the Storage is.
type Engine struct {
	store  Storage
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source. Tests use a deterministic clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator overrides the event ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Defaults to a logger that discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over s.
//
// Defaults: SystemClock, UUIDv7Generator, discard logger.
func New(s Storage, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateOrReconcile creates the record described by raw, or reconciles it
// against the record already stored under the same identifier.
//
//   - absent: record and CREATED event are written atomically (OutcomeCreated)
//   - present with equal canonical fields: nothing is written (OutcomeIdempotent)
//   - present with different canonical fields: DATA_CONFLICT, nothing is written
//
// A lost insert race is resolved by re-reading the winner and reconciling.
func (e *Engine) CreateOrReconcile(ctx context.Context, raw credit.RawRecord) (Result, error) {
	c, id, err := credit.IdentifyRaw(raw)
	if err != nil {
		return Result{}, err
	}

	h, err := e.store.ReadHistory(ctx, id)
	switch {
	case err == nil:
		return e.reconcile(c, h)
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, fmt.Errorf("create record %s: %w", id, err)
	}

	now := e.clock.Now()
	rec := credit.Record{ID: id, Canonical: c, CreatedAt: now}
	created := credit.Event{
		ID:        e.ids.Generate(),
		RecordID:  id,
		Type:      credit.EventCreated,
		CreatedAt: now,
	}

	inserted, err := e.store.InsertRecord(ctx, rec, created)
	if err != nil {
		return Result{}, fmt.Errorf("create record %s: %w", id, err)
	}

	// Fresh read either way: on success it returns the stored form with seq
	// assigned, on a lost race it returns the winner.
	h, err = e.store.ReadHistory(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("create record %s: re-read: %w", id, err)
	}

	if !inserted {
		e.logger.Debug("create race lost, reconciling", "record_id", id)
		return e.reconcile(c, h)
	}

	e.logger.Info("record created", "record_id", id, "outcome", OutcomeCreated)
	return Result{Outcome: OutcomeCreated, History: h}, nil
}

// reconcile compares the incoming canonical form with the stored one.
func (e *Engine) reconcile(incoming credit.Canonical, h credit.History) (Result, error) {
	if fields := h.Record.Canonical.Diff(incoming); len(fields) > 0 {
		e.logger.Warn("record conflict", "record_id", h.Record.ID, "fields", fields)
		return Result{}, credit.NewDataConflictError(h.Record.ID, fields)
	}
	e.logger.Debug("record unchanged", "record_id", h.Record.ID, "outcome", OutcomeIdempotent)
	return Result{Outcome: OutcomeIdempotent, History: h}, nil
}

// Retire transitions a record from ACTIVE to RETIRED.
//
// payload is optional JSON attached to the RETIRED event. Returns NOT_FOUND
// for an unknown record and ALREADY_RETIRED when a RETIRED event exists,
// including when a concurrent retire wins the insert.
func (e *Engine) Retire(ctx context.Context, id string, payload json.RawMessage) (credit.Event, error) {
	if len(payload) > 0 && !json.Valid(payload) {
		return credit.Event{}, credit.NewInvalidInputError("payload", "payload must be valid JSON")
	}

	h, err := e.store.ReadHistory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return credit.Event{}, credit.NewNotFoundError(id)
	}
	if err != nil {
		return credit.Event{}, fmt.Errorf("retire record %s: %w", id, err)
	}
	if h.HasEvent(credit.EventRetired) {
		return credit.Event{}, credit.NewAlreadyRetiredError(id)
	}

	ev, err := e.store.InsertEvent(ctx, credit.Event{
		ID:        e.ids.Generate(),
		RecordID:  id,
		Type:      credit.EventRetired,
		Payload:   payload,
		CreatedAt: e.clock.Now(),
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateEvent):
		e.logger.Debug("retire race lost", "record_id", id)
		return credit.Event{}, credit.NewAlreadyRetiredError(id)
	case errors.Is(err, store.ErrNotFound):
		return credit.Event{}, credit.NewNotFoundError(id)
	default:
		return credit.Event{}, fmt.Errorf("retire record %s: %w", id, err)
	}

	e.logger.Info("record retired", "record_id", id, "event_id", ev.ID)
	return ev, nil
}

// Get returns a record with its full event history.
func (e *Engine) Get(ctx context.Context, id string) (credit.History, error) {
	h, err := e.store.ReadHistory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return credit.History{}, credit.NewNotFoundError(id)
	}
	if err != nil {
		return credit.History{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return h, nil
}

// List returns every record with its history, oldest first.
func (e *Engine) List(ctx context.Context) ([]credit.History, error) {
	hs, err := e.store.ListHistories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return hs, nil
}

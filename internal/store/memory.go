package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/offset/internal/credit"
)

// Memory is an in-process backend with the same contract as Store.
// A single mutex serializes every operation, which gives the same atomicity
// and uniqueness guarantees the SQLite constraints provide.
type Memory struct {
	mu      sync.Mutex
	seq     int64
	records map[string]credit.Record
	events  map[string][]credit.Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]credit.Record),
		events:  make(map[string][]credit.Event),
	}
}

// Close is a no-op so Memory can stand in wherever a closable store is expected.
func (m *Memory) Close() error { return nil }

// ReadHistory returns a copy of the record and its events, or ErrNotFound.
func (m *Memory) ReadHistory(ctx context.Context, id string) (credit.History, error) {
	if err := ctx.Err(); err != nil {
		return credit.History{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return credit.History{}, ErrNotFound
	}
	return credit.History{Record: rec, Events: cloneEvents(m.events[id])}, nil
}

// InsertRecord stores rec and its CREATED event unless the ID is taken.
func (m *Memory) InsertRecord(ctx context.Context, rec credit.Record, created credit.Event) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if created.RecordID != rec.ID || created.Type != credit.EventCreated {
		return false, fmt.Errorf("write record: initial event must be CREATED for %s", rec.ID)
	}
	payload, err := compactPayload(created.Payload)
	if err != nil {
		return false, fmt.Errorf("write record: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return false, nil
	}
	m.seq++
	rec.CreatedAt = rec.CreatedAt.UTC()
	created.Seq = m.seq
	created.Payload = payload
	created.CreatedAt = created.CreatedAt.UTC()
	m.records[rec.ID] = rec
	m.events[rec.ID] = []credit.Event{created}
	return true, nil
}

// InsertEvent appends ev, enforcing one event per (record, type).
func (m *Memory) InsertEvent(ctx context.Context, ev credit.Event) (credit.Event, error) {
	if err := ctx.Err(); err != nil {
		return credit.Event{}, err
	}
	payload, err := compactPayload(ev.Payload)
	if err != nil {
		return credit.Event{}, fmt.Errorf("write event: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[ev.RecordID]; !ok {
		return credit.Event{}, ErrNotFound
	}
	for _, existing := range m.events[ev.RecordID] {
		if existing.Type == ev.Type {
			return credit.Event{}, ErrDuplicateEvent
		}
	}
	m.seq++
	ev.Seq = m.seq
	ev.Payload = payload
	ev.CreatedAt = ev.CreatedAt.UTC()
	m.events[ev.RecordID] = append(m.events[ev.RecordID], ev)
	return ev, nil
}

// ListHistories returns all records ordered by created_at, then id.
func (m *Memory) ListHistories(ctx context.Context) ([]credit.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	histories := make([]credit.History, 0, len(m.records))
	for id, rec := range m.records {
		histories = append(histories, credit.History{Record: rec, Events: cloneEvents(m.events[id])})
	}
	sort.Slice(histories, func(i, j int) bool {
		a, b := histories[i].Record, histories[j].Record
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return histories, nil
}

func cloneEvents(events []credit.Event) []credit.Event {
	out := make([]credit.Event, len(events))
	for i, ev := range events {
		if ev.Payload != nil {
			ev.Payload = append(json.RawMessage(nil), ev.Payload...)
		}
		out[i] = ev
	}
	return out
}

// compactPayload applies the same payload normalization as MarshalPayload.
func compactPayload(p json.RawMessage) (json.RawMessage, error) {
	ns, err := MarshalPayload(p)
	if err != nil {
		return nil, err
	}
	if !ns.Valid {
		return nil, nil
	}
	return json.RawMessage(ns.String), nil
}

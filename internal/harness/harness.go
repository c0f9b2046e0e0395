package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
	"github.com/roach88/offset/internal/store"
	"github.com/roach88/offset/internal/testutil"
)

// Harness executes scenario steps against one engine.
type Harness struct {
	engine *engine.Engine
	store  *store.Memory
	logger *slog.Logger
}

// Run executes a scenario on a fresh in-memory store and returns its result.
//
// Timestamps start at testutil.Epoch and advance one second per tick; event
// IDs are ev-0001, ev-0002, ... An error is returned only when the scenario
// cannot be executed (a failing setup step or a storage failure); unmet
// expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	st := store.NewMemory()
	defer st.Close()

	h := &Harness{
		engine: engine.New(st,
			engine.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
			engine.WithIDGenerator(testutil.NewSequentialIDs("ev")),
			engine.WithLogger(logger),
		),
		store:  st,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		entry, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, entry)
	}

	for i, step := range scenario.Flow {
		entry, err := h.execute(ctx, step, result)
		if err != nil && credit.CodeOf(err) == "" {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, entry)
		for _, msg := range checkExpect(step, entry) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Action, msg))
		}
		h.logger.Debug("flow step completed", "step", i, "action", step.Action,
			"record_id", entry.RecordID, "outcome", entry.Outcome, "error", entry.Error)
	}

	final, err := h.final(ctx)
	if err != nil {
		return nil, err
	}
	result.Final = final

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. Domain errors are recorded in the entry and also
// returned so setup can treat them as fatal.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) (TraceEntry, error) {
	entry := TraceEntry{Step: len(result.Trace) + 1, Action: step.Action}

	var (
		hist credit.History
		err  error
	)
	switch step.Action {
	case ActionCreate:
		var res engine.Result
		res, err = h.engine.CreateOrReconcile(ctx, credit.RawRecord(step.Record))
		if err == nil {
			hist = res.History
			entry.Outcome = string(res.Outcome)
			if step.As != "" {
				result.ids[step.As] = hist.Record.ID
			}
		} else {
			entry.RecordID = conflictID(err)
		}
	case ActionRetire:
		id := result.RecordID(step.ID, step.Ref)
		entry.RecordID = id
		var payload json.RawMessage
		if step.Payload != nil {
			payload, err = json.Marshal(step.Payload)
			if err != nil {
				return entry, fmt.Errorf("encode payload: %w", err)
			}
		}
		if _, err = h.engine.Retire(ctx, id, payload); err == nil {
			hist, err = h.engine.Get(ctx, id)
		}
	case ActionGet:
		id := result.RecordID(step.ID, step.Ref)
		entry.RecordID = id
		hist, err = h.engine.Get(ctx, id)
	case ActionList:
		var hs []credit.History
		hs, err = h.engine.List(ctx)
		entry.Count = len(hs)
	}

	if err != nil {
		entry.Error = string(credit.CodeOf(err))
		return entry, err
	}
	if hist.Record.ID != "" {
		entry.RecordID = hist.Record.ID
		entry.Status = string(hist.Status())
		entry.Events = eventTypes(hist.Events)
	}
	return entry, nil
}

func conflictID(err error) string {
	if !credit.IsDataConflict(err) {
		return ""
	}
	var de *credit.Error
	if errors.As(err, &de) {
		return de.RecordID
	}
	return ""
}

// checkExpect compares a trace entry with the step's expect clause.
func checkExpect(step Step, entry TraceEntry) []string {
	var msgs []string
	e := step.Expect
	if e == nil {
		if entry.Error != "" {
			msgs = append(msgs, fmt.Sprintf("unexpected error %s", entry.Error))
		}
		return msgs
	}
	if entry.Error != e.Error {
		msgs = append(msgs, fmt.Sprintf("expected error %q, got %q", e.Error, entry.Error))
	}
	if e.Outcome != "" && entry.Outcome != e.Outcome {
		msgs = append(msgs, fmt.Sprintf("expected outcome %q, got %q", e.Outcome, entry.Outcome))
	}
	if e.Status != "" && entry.Status != e.Status {
		msgs = append(msgs, fmt.Sprintf("expected status %q, got %q", e.Status, entry.Status))
	}
	if e.Count != nil && entry.Count != *e.Count {
		msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *e.Count, entry.Count))
	}
	return msgs
}

// final snapshots every stored record.
func (h *Harness) final(ctx context.Context) ([]RecordState, error) {
	hs, err := h.store.ListHistories(ctx)
	if err != nil {
		return nil, fmt.Errorf("read final state: %w", err)
	}
	out := make([]RecordState, 0, len(hs))
	for _, hist := range hs {
		events := make([]EventState, 0, len(hist.Events))
		for _, ev := range hist.Events {
			events = append(events, EventState{ID: ev.ID, Type: string(ev.Type), CreatedAt: ev.CreatedAt})
		}
		out = append(out, RecordState{
			ID:        hist.Record.ID,
			Status:    string(hist.Status()),
			Quantity:  hist.Record.Quantity,
			CreatedAt: hist.Record.CreatedAt,
			Events:    events,
		})
	}
	return out, nil
}

func eventTypes(events []credit.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Type)
	}
	return out
}

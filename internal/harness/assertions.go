package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // assertion type
	Expected string       // human-readable expected outcome
	Actual   string       // human-readable actual outcome
	Trace    []TraceEntry // full trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, entry := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", entry.Step, entry.Action)
		if entry.RecordID != "" {
			fmt.Fprintf(&buf, " %s", shortID(entry.RecordID))
		}
		if entry.Outcome != "" {
			fmt.Fprintf(&buf, " -> %s", entry.Outcome)
		}
		if entry.Error != "" {
			fmt.Fprintf(&buf, " -> %s", entry.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRecordStatus:
		return assertRecordStatus(result, a)
	case AssertEventOrder:
		return assertEventOrder(result, a)
	case AssertRecordCount:
		return assertRecordCount(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// findRecord looks up a record in the final state.
func findRecord(result *Result, id string) (RecordState, bool) {
	for _, rec := range result.Final {
		if rec.ID == id {
			return rec, true
		}
	}
	return RecordState{}, false
}

func assertRecordStatus(result *Result, a Assertion) error {
	id := result.RecordID(a.ID, a.Ref)
	rec, ok := findRecord(result, id)
	if !ok {
		return &AssertionError{
			Type:     AssertRecordStatus,
			Expected: fmt.Sprintf("record %s with status %s", shortID(id), a.Status),
			Actual:   "record not stored",
			Trace:    result.Trace,
		}
	}
	if rec.Status != a.Status {
		return &AssertionError{
			Type:     AssertRecordStatus,
			Expected: fmt.Sprintf("status %s", a.Status),
			Actual:   fmt.Sprintf("status %s", rec.Status),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertEventOrder(result *Result, a Assertion) error {
	id := result.RecordID(a.ID, a.Ref)
	rec, ok := findRecord(result, id)
	if !ok {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("record %s with events %v", shortID(id), a.Events),
			Actual:   "record not stored",
			Trace:    result.Trace,
		}
	}
	got := make([]string, len(rec.Events))
	for i, ev := range rec.Events {
		got[i] = ev.Type
	}
	if !slices.Equal(got, a.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events %v", a.Events),
			Actual:   fmt.Sprintf("events %v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRecordCount(result *Result, a Assertion) error {
	if len(result.Final) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", len(result.Final)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceCount counts trace entries with the given action, optionally
// narrowed by outcome and error code.
func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, entry := range result.Trace {
		if entry.Action != a.Action {
			continue
		}
		if a.Outcome != "" && entry.Outcome != a.Outcome {
			continue
		}
		if a.Error != "" && entry.Error != a.Error {
			continue
		}
		count++
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s step(s)%s", a.Count, a.Action, traceFilter(a)),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func traceFilter(a Assertion) string {
	switch {
	case a.Outcome != "" && a.Error != "":
		return fmt.Sprintf(" with outcome %s and error %s", a.Outcome, a.Error)
	case a.Outcome != "":
		return " with outcome " + a.Outcome
	case a.Error != "":
		return " with error " + a.Error
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

package harness

import "time"

// TraceEntry records what one step did.
type TraceEntry struct {
	Step     int      `json:"step"` // 1-based, setup steps first
	Action   string   `json:"action"`
	RecordID string   `json:"record_id,omitempty"`
	Outcome  string   `json:"outcome,omitempty"`
	Error    string   `json:"error,omitempty"`
	Status   string   `json:"status,omitempty"`
	Events   []string `json:"events,omitempty"` // event types after the step
	Count    int      `json:"count,omitempty"`  // list size
}

// RecordState is a record as stored at the end of a scenario.
type RecordState struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Quantity  string       `json:"quantity"`
	CreatedAt time.Time    `json:"created_at"`
	Events    []EventState `json:"events"`
}

// EventState is an event as stored at the end of a scenario.
type EventState struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per executed step.
	Trace []TraceEntry `json:"trace"`

	// Final is every stored record, oldest first.
	Final []RecordState `json:"final"`

	// Errors describes failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// ids maps As names to record IDs.
	ids map[string]string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Final:  []RecordState{},
		Errors: []string{},
		ids:    make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RecordID resolves a ref or returns id unchanged.
func (r *Result) RecordID(id, ref string) string {
	if ref != "" {
		return r.ids[ref]
	}
	return id
}

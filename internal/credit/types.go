package credit

import (
	"encoding/json"
	"time"
)

// RawRecord is untrusted record input as decoded from JSON, YAML, CSV or XLSX.
// Values are validated and normalized by Canonicalize.
type RawRecord map[string]any

// Field names shared by raw input, storage columns and the HTTP payload.
const (
	FieldProjectName  = "project_name"
	FieldRegistry     = "registry"
	FieldVintage      = "vintage"
	FieldQuantity     = "quantity"
	FieldSerialNumber = "serial_number"
)

// Canonical is the normalized form of a record. Two raw inputs that describe
// the same credits produce byte-identical Canonical values.
type Canonical struct {
	ProjectName  string `json:"project_name"`
	Registry     string `json:"registry"`
	Vintage      int64  `json:"vintage"`
	Quantity     string `json:"quantity"` // plain decimal, exactly 4 fractional digits
	SerialNumber string `json:"serial_number"`
}

// Record is a persisted credit record. It never changes after creation.
type Record struct {
	ID string `json:"id"` // RecordID of the canonical fields
	Canonical
	CreatedAt time.Time `json:"created_at"`
}

// EventType tags a lifecycle transition.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventRetired EventType = "RETIRED"
)

// Event is a lifecycle transition owned by exactly one Record.
type Event struct {
	ID        string          `json:"id"`
	RecordID  string          `json:"record_id"`
	Type      EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Seq       int64           `json:"-"` // creation order, assigned by storage
	CreatedAt time.Time       `json:"created_at"`
}

// Status is derived from a record's events and never stored.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRetired Status = "RETIRED"
)

// History is a record together with its events in creation order.
type History struct {
	Record Record
	Events []Event
}

// Status reports RETIRED once any RETIRED event exists.
func (h History) Status() Status {
	if h.HasEvent(EventRetired) {
		return StatusRetired
	}
	return StatusActive
}

// HasEvent reports whether an event of the given type is present.
func (h History) HasEvent(t EventType) bool {
	for _, ev := range h.Events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

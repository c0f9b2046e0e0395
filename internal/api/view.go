package api

import (
	"encoding/json"
	"time"

	"github.com/roach88/offset/internal/credit"
)

// RecordView is the wire form of a record with its derived status and events.
type RecordView struct {
	ID           string        `json:"id"`
	ProjectName  string        `json:"project_name"`
	Registry     string        `json:"registry"`
	Vintage      int64         `json:"vintage"`
	Quantity     string        `json:"quantity"`
	SerialNumber string        `json:"serial_number"`
	CreatedAt    time.Time     `json:"created_at"`
	Status       credit.Status `json:"status"`
	Events       []EventView   `json:"events"`
}

// EventView is the wire form of an event.
type EventView struct {
	ID        string           `json:"id"`
	RecordID  string           `json:"record_id"`
	EventType credit.EventType `json:"event_type"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewRecordView renders a history for output.
func NewRecordView(h credit.History) RecordView {
	events := make([]EventView, 0, len(h.Events))
	for _, ev := range h.Events {
		events = append(events, NewEventView(ev))
	}
	return RecordView{
		ID:           h.Record.ID,
		ProjectName:  h.Record.ProjectName,
		Registry:     h.Record.Registry,
		Vintage:      h.Record.Vintage,
		Quantity:     h.Record.Quantity,
		SerialNumber: h.Record.SerialNumber,
		CreatedAt:    h.Record.CreatedAt,
		Status:       h.Status(),
		Events:       events,
	}
}

// NewEventView renders an event for output. A missing payload becomes JSON null.
func NewEventView(ev credit.Event) EventView {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return EventView{
		ID:        ev.ID,
		RecordID:  ev.RecordID,
		EventType: ev.Type,
		Payload:   payload,
		CreatedAt: ev.CreatedAt,
	}
}

// NewRecordViews renders a list of histories.
func NewRecordViews(hs []credit.History) []RecordView {
	out := make([]RecordView, 0, len(hs))
	for _, h := range hs {
		out = append(out, NewRecordView(h))
	}
	return out
}

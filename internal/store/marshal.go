package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/offset/internal/credit"
)

// timeLayout is used for TEXT timestamp columns. Fixed-width nanoseconds keep
// lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// MarshalPayload compacts an event payload for storage. Empty and JSON null
// payloads are stored as NULL.
func MarshalPayload(p json.RawMessage) (sql.NullString, error) {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return sql.NullString{}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return sql.NullString{}, fmt.Errorf("marshal payload: %w", err)
	}
	return sql.NullString{String: buf.String(), Valid: true}, nil
}

// unmarshalPayload converts a nullable payload column back to raw JSON.
func unmarshalPayload(ns sql.NullString) json.RawMessage {
	if !ns.Valid {
		return nil
	}
	return json.RawMessage(ns.String)
}

// normalizeQuantity keeps stored quantities in canonical scale regardless of
// how the backend renders numeric columns.
func normalizeQuantity(stored string) (string, error) {
	q, err := credit.FormatQuantity(stored)
	if err != nil {
		return "", fmt.Errorf("stored quantity: %w", err)
	}
	return q, nil
}

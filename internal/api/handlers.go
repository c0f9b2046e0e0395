// Package api exposes the record ledger over HTTP.
//
// Routes:
//
//	POST /records               create or reconcile (201 created, 200 idempotent)
//	GET  /records               list records with status
//	GET  /records/{id}          record with status and events
//	POST /records/{id}/retire   append RETIRED event
//	GET  /healthz               liveness
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Service is the engine surface the handlers call.
type Service interface {
	CreateOrReconcile(ctx context.Context, raw credit.RawRecord) (engine.Result, error)
	Retire(ctx context.Context, id string, payload json.RawMessage) (credit.Event, error)
	Get(ctx context.Context, id string) (credit.History, error)
	List(ctx context.Context) ([]credit.History, error)
}

type handlers struct {
	svc    Service
	logger *slog.Logger
}

func (h *handlers) createRecord(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		writeError(w, r, h.logger, credit.NewInvalidInputError("", "request body must be a JSON object"))
		return
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		writeError(w, r, h.logger, credit.NewInvalidInputError("", "request body must hold a single JSON object"))
		return
	}

	res, err := h.svc.CreateOrReconcile(r.Context(), credit.RawRecord(raw))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == engine.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, NewRecordView(res.History))
}

func (h *handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r, h.logger)
	if !ok {
		return
	}
	hist, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRecordView(hist))
}

func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	hs, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRecordViews(hs))
}

// retireRequest is the optional retire body.
type retireRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (h *handlers) retireRecord(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req retireRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, r, h.logger, credit.NewInvalidInputError("payload", "request body must be a JSON object"))
			return
		}
	}

	id, ok := recordID(w, r, h.logger)
	if !ok {
		return
	}
	ev, err := h.svc.Retire(r.Context(), id, req.Payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NewEventView(ev))
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordID returns the {id} path parameter. Values that cannot be a record
// identifier are answered with NOT_FOUND without a storage read.
func recordID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := chi.URLParam(r, "id")
	if !credit.IsRecordID(id) {
		writeError(w, r, logger, credit.NewNotFoundError(id))
		return "", false
	}
	return id, true
}

// readBody reads at most maxBodyBytes. Oversized bodies are invalid input.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, credit.NewInvalidInputError("", "request body exceeds %d bytes", tooLarge.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/offset/internal/credit"
)

// ErrCodeInternal is reported for failures that are not domain errors.
const ErrCodeInternal = "INTERNAL"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain error codes to HTTP status codes.
func statusFor(code credit.ErrorCode) int {
	switch code {
	case credit.ErrCodeInvalidInput:
		return http.StatusUnprocessableEntity
	case credit.ErrCodeDataConflict, credit.ErrCodeAlreadyRetired:
		return http.StatusConflict
	case credit.ErrCodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError renders err. Domain errors keep their code and message;
// anything else is logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var de *credit.Error
	if !errors.As(err, &de) {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    ErrCodeInternal,
			Message: "internal error",
		}})
		return
	}
	writeJSON(w, statusFor(de.Code), errorBody{Error: errorDetail{
		Code:     string(de.Code),
		Message:  de.Message,
		RecordID: de.RecordID,
		Field:    de.Field,
	}})
}

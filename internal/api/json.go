package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/xflkit/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a domain error to its status code. Server-side failures
// are logged under op and hidden from the client.
func writeError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrInvalidOperation):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrOutOfRange),
		errors.Is(err, apperr.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrMissingDependency):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrUnimplemented):
		status = http.StatusNotImplemented
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

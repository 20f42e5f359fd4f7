package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/vitae/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors to responses. Compile and tooling failures
// are plain text so the log reads as-is in a browser.
func writeError(w http.ResponseWriter, op string, err error) {
	var ce *apperr.CompileError
	var te *apperr.ToolingError
	switch {
	case errors.Is(err, apperr.ErrNoMapping):
		writeText(w, http.StatusOK, "0")
	case errors.As(err, &ce):
		writeText(w, http.StatusUnprocessableEntity, ce.Log)
	case errors.As(err, &te):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeText(w, http.StatusInternalServerError, te.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrGone):
		writeJSON(w, http.StatusGone, errorBody("build not resident"))
	case errors.Is(err, apperr.ErrInvalidName):
		writeJSON(w, http.StatusForbidden, errorBody("profile illegal"))
	case errors.Is(err, apperr.ErrMissingBody):
		writeJSON(w, http.StatusBadRequest, errorBody("latex is required"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxProfileSize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/parser"
	"github.com/starford/scratch/internal/saveas"
	"github.com/starford/scratch/internal/textmodel"
)

const maxBodyBytes = 10 << 20

type validatable interface {
	Validate() error
}

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

// decodeBody decodes a JSON body into v and validates it. An empty body
// leaves v at its zero value. It writes the 400 response itself and reports
// whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op, key string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrDisposed):
		writeJSON(w, http.StatusGone, errorBody("disposed"))
	case errors.Is(err, apperr.ErrNotUntitled):
		writeJSON(w, http.StatusBadRequest, errorBody("not an untitled resource"))
	case errors.Is(err, textmodel.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("content too large"))
	case errors.Is(err, saveas.ErrNoTarget):
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
	case errors.Is(err, parser.ErrFrontmatter):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("key", key), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/gardener"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps domain errors onto HTTP status codes.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrThreadBusy):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrThreadClosed):
		return http.StatusGone
	case errors.Is(err, gardener.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gardener.ErrNoMergeTarget):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

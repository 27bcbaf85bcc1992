package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/taskquest/taskquest/internal/engine"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine failures to HTTP statuses. Precondition
// no-ops (task already completed, claim already resolved) are handled by the
// callers before reaching here.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, engine.ErrNotAuthorized), errors.Is(err, engine.ErrNotAssigned):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
	case errors.Is(err, engine.ErrInsufficientCoins):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "not enough coins"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

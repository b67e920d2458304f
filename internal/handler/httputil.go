package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/cycle"
	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/labeling"
	"github.com/matthewbaird/mllabeler/internal/similar"
	"github.com/matthewbaird/mllabeler/internal/store"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// engineErrorToHTTP maps labeling and finder errors to HTTP responses.
func engineErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, labeling.ErrUnknownLabel):
		writeError(w, http.StatusBadRequest, "UNKNOWN_LABEL", err.Error())
	case errors.Is(err, workflow.ErrUnknownFacet):
		writeError(w, http.StatusBadRequest, "UNKNOWN_FACET", err.Error())
	case errors.Is(err, labeling.ErrNotReady):
		writeError(w, http.StatusConflict, "NOT_READY", err.Error())
	case errors.Is(err, cycle.ErrBusy):
		writeError(w, http.StatusConflict, "CYCLE_BUSY", err.Error())
	case errors.Is(err, cycle.ErrNotEnabled):
		writeError(w, http.StatusConflict, "CYCLE_DISABLED", err.Error())
	case errors.Is(err, similar.ErrNoReference):
		writeError(w, http.StatusConflict, "NO_REFERENCE", err.Error())
	case errors.Is(err, similar.ErrInvalidConfig), errors.Is(err, similar.ErrInvalidNumber):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_CONFIG", err.Error())
	case errors.Is(err, labeling.ErrSaveFailed):
		log.Printf("save error: %v", err)
		writeError(w, http.StatusBadGateway, "SAVE_FAILED", err.Error())
	case errors.Is(err, store.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "STOPPED", err.Error())
	case errors.Is(err, taxonomy.ErrCyclic), errors.Is(err, history.ErrIndexOutOfRange):
		log.Printf("integrity error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTEGRITY_ERROR", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

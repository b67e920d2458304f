package handler

import (
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/mllabeler/internal/similar"
)

// SimilarHandler serves the similar-element finder.
type SimilarHandler struct {
	finder *similar.Service
}

// NewSimilarHandler creates a SimilarHandler.
func NewSimilarHandler(finder *similar.Service) *SimilarHandler {
	return &SimilarHandler{finder: finder}
}

// Routes registers the finder endpoints on r.
func (h *SimilarHandler) Routes(r chi.Router) {
	r.Get("/similar", h.GetState)
	r.Put("/similar/config", h.SetConfig)
	r.Patch("/similar/config/{field}", h.SetConfigField)
	r.Post("/similar/extend", h.Extend)
	r.Post("/similar/reset", h.Reset)
}

// GetState returns the finder state.
func (h *SimilarHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.finder.State())
}

// SetConfig replaces the finder configuration.
func (h *SimilarHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg similar.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	st, err := h.finder.SetConfig(r.Context(), cfg)
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// FieldRequest carries a raw user-entered number.
type FieldRequest struct {
	Value string `json:"value"`
}

// FieldResponse reports the value kept for a numeric field.
type FieldResponse struct {
	Field string  `json:"field"`
	Value float64 `json:"value"`
	Error string  `json:"error,omitempty"`
}

// SetConfigField validates one numeric field. An invalid entry keeps the
// previous value and answers 422 with it.
func (h *SimilarHandler) SetConfigField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	cfg := h.finder.State().Config.Clone()
	field := chi.URLParam(r, "field")

	var (
		v   float64
		err error
	)
	switch field {
	case "max_dist_value":
		v, err = similar.ValidateNumber(req.Value, true, 0, math.MaxFloat64, cfg.MaxDistValue)
		cfg.MaxDistValue = v
	case "max_count_value":
		v, err = similar.ValidateNumber(req.Value, false, 1, math.MaxInt32, float64(cfg.MaxCountValue))
		cfg.MaxCountValue = int(v)
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_FIELD", "unknown numeric field: "+field)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, FieldResponse{Field: field, Value: v, Error: err.Error()})
		return
	}
	if _, err := h.finder.SetConfig(r.Context(), cfg); err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FieldResponse{Field: field, Value: v})
}

// ExtendResponse identifies a started search.
type ExtendResponse struct {
	Token string `json:"token"`
}

// Extend starts a search for elements similar to the reference.
func (h *SimilarHandler) Extend(w http.ResponseWriter, r *http.Request) {
	token, err := h.finder.Extend(r.Context())
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ExtendResponse{Token: token})
}

// Reset restores the selection to the reference element.
func (h *SimilarHandler) Reset(w http.ResponseWriter, r *http.Request) {
	st, err := h.finder.Reset(r.Context())
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

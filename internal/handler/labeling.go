// Package handler exposes the labeling engine and the similar-element finder
// over HTTP.
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/mllabeler/internal/labeling"
	"github.com/matthewbaird/mllabeler/internal/similar"
	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

// LabelingHandler serves labeling operations.
type LabelingHandler struct {
	engine *labeling.Engine
	finder *similar.Service
}

// NewLabelingHandler creates a LabelingHandler. finder may be nil.
func NewLabelingHandler(engine *labeling.Engine, finder *similar.Service) *LabelingHandler {
	return &LabelingHandler{engine: engine, finder: finder}
}

// Routes registers the labeling endpoints on r.
func (h *LabelingHandler) Routes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Get("/elements", h.ListElements)
	r.Get("/overrides", h.GetOverrides)
	r.Get("/tables/{facet}", h.GetTable)
	r.Get("/labels/tree", h.GetTree)

	r.Post("/selection", h.ChangeSelection)
	r.Post("/select/{facet}", h.SelectFacet)

	r.Post("/labels/apply", h.ApplyLabel)
	r.Put("/labels/{label}/color", h.SetLabelColor)
	r.Put("/labels/{label}/expanded", h.SetLabelExpanded)
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
	r.Post("/save", h.Save)

	r.Put("/visibility/{facet}", h.SetVisibility)
	r.Post("/visibility/swap", h.SwapVisibility)
	r.Put("/color-mode", h.SetColorMode)
	r.Put("/force-show-all", h.SetForceShowAll)

	r.Post("/cycle/enable", h.EnableCycle)
	r.Post("/cycle/disable", h.DisableCycle)
	r.Post("/cycle/forward", h.CycleForward)
	r.Post("/cycle/backward", h.CycleBackward)
	r.Put("/cycle/popout", h.SetPoppedOut)
}

// StateSummary is the client view of the labeling state.
type StateSummary struct {
	Ready        bool                 `json:"ready"`
	Dirty        bool                 `json:"dirty"`
	CanUndo      bool                 `json:"can_undo"`
	CanRedo      bool                 `json:"can_redo"`
	ElementCount int                  `json:"element_count"`
	Unlabeled    types.Label          `json:"unlabeled"`
	ColorMode    types.ColorMode      `json:"color_mode"`
	ForceShowAll bool                 `json:"force_show_all"`
	Selection    *workflow.Selection  `json:"selection"`
	Cycle        *workflow.CycleState `json:"cycle"`
}

func (h *LabelingHandler) summary(st *workflow.State) (StateSummary, error) {
	sel := h.engine.Selectors()
	out := StateSummary{
		Ready:        st.Ready,
		Dirty:        st.Dirty(),
		CanUndo:      sel.CanUndo(st),
		CanRedo:      sel.CanRedo(st),
		Unlabeled:    st.Unlabeled,
		ColorMode:    st.ColorMode,
		ForceShowAll: st.ForceShowAll,
		Selection:    st.Selection,
		Cycle:        st.Cycle,
	}
	cat, err := st.Catalog()
	if err != nil {
		return out, err
	}
	out.ElementCount = cat.Len()
	return out, nil
}

func (h *LabelingHandler) respondState(w http.ResponseWriter, st *workflow.State, err error) {
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	s, err := h.summary(st)
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetState returns the state summary.
func (h *LabelingHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, h.engine.State(), nil)
}

// ListElements returns every element of the current history snapshot.
func (h *LabelingHandler) ListElements(w http.ResponseWriter, r *http.Request) {
	cat, err := h.engine.State().Catalog()
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	out := make([]types.ElementState, 0, cat.Len())
	cat.Range(func(e *types.ElementState) bool {
		out = append(out, *e)
		return true
	})
	writeJSON(w, http.StatusOK, out)
}

// GetOverrides returns the per-element display overrides.
func (h *LabelingHandler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Selectors().Overrides(h.engine.State())
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTable returns the aggregated table of a facet. The true_label and
// pred_label facets share the ML table.
func (h *LabelingHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	st := h.engine.State()
	sel := h.engine.Selectors()
	var (
		out any
		err error
	)
	switch workflow.Facet(chi.URLParam(r, "facet")) {
	case workflow.FacetModel:
		out, err = sel.ModelTable(st)
	case workflow.FacetCategory:
		out, err = sel.CategoryTable(st)
	case workflow.FacetClass:
		out, err = sel.ClassTable(st)
	case workflow.FacetTrueLabel, workflow.FacetPredLabel:
		out, err = sel.MLTable(st)
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_FACET", "unknown facet: "+chi.URLParam(r, "facet"))
		return
	}
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTree returns the flattened label tree.
func (h *LabelingHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Selectors().Tree(h.engine.State())
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// SelectionRequest carries a list of element ids.
type SelectionRequest struct {
	IDs []string `json:"ids"`
}

// SelectionChanged feeds a host selection to the engine and the finder.
func (h *LabelingHandler) SelectionChanged(ctx context.Context, ids []string) error {
	if _, err := h.engine.HandleSelection(ctx, ids); err != nil {
		return err
	}
	if h.finder != nil {
		return h.finder.HandleSelection(ctx, ids)
	}
	return nil
}

// ChangeSelection reports a new host selection.
func (h *LabelingHandler) ChangeSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if err := h.SelectionChanged(r.Context(), req.IDs); err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	h.respondState(w, h.engine.State(), nil)
}

// SelectRequest names a facet entry. A nil ID selects the whole facet.
type SelectRequest struct {
	ID *string `json:"id"`
}

// SelectFacet selects the selectable elements of one facet entry.
func (h *LabelingHandler) SelectFacet(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	var (
		ids []string
		err error
	)
	switch facet := workflow.Facet(chi.URLParam(r, "facet")); facet {
	case workflow.FacetModel:
		ids, err = h.engine.SelectModel(r.Context(), req.ID)
	case workflow.FacetCategory:
		ids, err = h.engine.SelectCategory(r.Context(), req.ID)
	case workflow.FacetClass:
		ids, err = h.engine.SelectClass(r.Context(), req.ID)
	case workflow.FacetTrueLabel:
		ids, err = h.engine.SelectLabel(r.Context(), req.ID)
	case workflow.FacetPredLabel:
		ids, err = h.engine.SelectPrediction(r.Context(), req.ID)
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_FACET", "unknown facet: "+string(facet))
		return
	}
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionRequest{IDs: ids})
}

// ApplyLabelRequest assigns Label to IDs, or to the selection when IDs is
// empty.
type ApplyLabelRequest struct {
	IDs   []string    `json:"ids,omitempty"`
	Label types.Label `json:"label"`
}

// ApplyLabel sets the true label of elements.
func (h *LabelingHandler) ApplyLabel(w http.ResponseWriter, r *http.Request) {
	var req ApplyLabelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "label is required")
		return
	}
	if len(req.IDs) == 0 {
		st, err := h.engine.ApplyLabelToSelection(r.Context(), req.Label)
		h.respondState(w, st, err)
		return
	}
	st, err := h.engine.ApplyLabel(r.Context(), req.IDs, req.Label)
	h.respondState(w, st, err)
}

// Undo steps the label history back.
func (h *LabelingHandler) Undo(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Undo(r.Context())
	h.respondState(w, st, err)
}

// Redo steps the label history forward.
func (h *LabelingHandler) Redo(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Redo(r.Context())
	h.respondState(w, st, err)
}

// SaveResponse reports whether an upload happened.
type SaveResponse struct {
	Saved bool `json:"saved"`
}

// Save uploads unsaved labels.
func (h *LabelingHandler) Save(w http.ResponseWriter, r *http.Request) {
	saved, err := h.engine.SaveLabels(r.Context())
	if err != nil {
		engineErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Saved: saved})
}

// VisibilityRequest changes the display of one facet entry, or of the whole
// facet when ID is nil.
type VisibilityRequest struct {
	ID          *string `json:"id"`
	Displayed   bool    `json:"displayed"`
	Transparent bool    `json:"transparent"`
}

// SetVisibility changes display flags on a facet.
func (h *LabelingHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	facet := workflow.Facet(chi.URLParam(r, "facet"))
	st, err := h.engine.SetVisibility(r.Context(), facet, req.ID, req.Displayed, req.Transparent)
	h.respondState(w, st, err)
}

// SwapVisibility inverts displayed and transparent flags on every facet.
func (h *LabelingHandler) SwapVisibility(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.SwapVisibility(r.Context())
	h.respondState(w, st, err)
}

// ColorRequest carries a "#rrggbb" color.
type ColorRequest struct {
	Color types.ColorDef `json:"color"`
}

// SetLabelColor recolors a label.
func (h *LabelingHandler) SetLabelColor(w http.ResponseWriter, r *http.Request) {
	var req ColorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	st, err := h.engine.SetLabelColor(r.Context(), labelParam(r), req.Color)
	h.respondState(w, st, err)
}

// ExpandedRequest toggles a tree node.
type ExpandedRequest struct {
	Expanded bool `json:"expanded"`
}

// SetLabelExpanded expands or collapses a label tree node.
func (h *LabelingHandler) SetLabelExpanded(w http.ResponseWriter, r *http.Request) {
	var req ExpandedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	st, err := h.engine.SetLabelExpanded(r.Context(), labelParam(r), req.Expanded)
	h.respondState(w, st, err)
}

// ColorModeRequest names a color mode.
type ColorModeRequest struct {
	Mode string `json:"mode"`
}

// SetColorMode changes how elements are colored.
func (h *LabelingHandler) SetColorMode(w http.ResponseWriter, r *http.Request) {
	var req ColorModeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	mode, err := types.ParseColorMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	st, err := h.engine.SetColorMode(r.Context(), mode)
	h.respondState(w, st, err)
}

// labelParam returns the unescaped {label} path parameter.
func labelParam(r *http.Request) types.Label {
	raw := chi.URLParam(r, "label")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// EnabledRequest carries a boolean switch.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetForceShowAll toggles the show-everything override.
func (h *LabelingHandler) SetForceShowAll(w http.ResponseWriter, r *http.Request) {
	var req EnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	st, err := h.engine.SetForceShowAll(r.Context(), req.Enabled)
	h.respondState(w, st, err)
}

// EnableCycle starts cycling through the selection.
func (h *LabelingHandler) EnableCycle(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Cycle().Enable(r.Context())
	h.respondState(w, h.engine.State(), err)
}

// DisableCycle leaves cycle mode and restores the viewports.
func (h *LabelingHandler) DisableCycle(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Cycle().Disable(r.Context())
	h.respondState(w, h.engine.State(), err)
}

// StepRequest carries a step count. Zero means one.
type StepRequest struct {
	Count int `json:"count"`
}

func (h *LabelingHandler) step(w http.ResponseWriter, r *http.Request, move func(context.Context, int) error) {
	req := StepRequest{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
	}
	if req.Count < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "count must not be negative")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	err := move(r.Context(), req.Count)
	h.respondState(w, h.engine.State(), err)
}

// CycleForward moves the cycle cursor forward.
func (h *LabelingHandler) CycleForward(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.engine.Cycle().Forward)
}

// CycleBackward moves the cycle cursor backward.
func (h *LabelingHandler) CycleBackward(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.engine.Cycle().Backward)
}

// PoppedOutRequest toggles the popped-out viewer.
type PoppedOutRequest struct {
	PoppedOut bool `json:"popped_out"`
}

// SetPoppedOut records whether the cycle viewer is popped out.
func (h *LabelingHandler) SetPoppedOut(w http.ResponseWriter, r *http.Request) {
	var req PoppedOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	err := h.engine.Cycle().SetPoppedOut(r.Context(), req.PoppedOut)
	h.respondState(w, h.engine.State(), err)
}

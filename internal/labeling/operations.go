package labeling

import (
	"context"
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

func (e *Engine) dispatch(ctx context.Context, a workflow.Action) (*workflow.State, error) {
	return e.store.Dispatch(ctx, a)
}

// HandleSelection records a selection reported by the host.
func (e *Engine) HandleSelection(ctx context.Context, ids []string) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.SelectionChanged{IDs: ids})
}

// ReplaceSelection asks the host to select ids and records the selection.
func (e *Engine) ReplaceSelection(ctx context.Context, ids []string) error {
	if e.publisher != nil {
		if err := e.publisher.ReplaceSelection(ctx, ids); err != nil {
			return fmt.Errorf("publishing selection: %w", err)
		}
	}
	_, err := e.dispatch(ctx, workflow.SelectionChanged{IDs: ids})
	return err
}

// ApplyLabel assigns label to ids as one undoable edit.
func (e *Engine) ApplyLabel(ctx context.Context, ids []string, label types.Label) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.ElementLabelsChanged{IDs: ids, Label: label})
}

// ApplyLabelToSelection assigns label to the current selection.
func (e *Engine) ApplyLabelToSelection(ctx context.Context, label types.Label) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.SelectionLabelChanged{Label: label})
}

func (e *Engine) Undo(ctx context.Context) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.UndoRequested{})
}

func (e *Engine) Redo(ctx context.Context) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.RedoRequested{})
}

// SetVisibility changes one facet entry, or all of them when id is nil.
func (e *Engine) SetVisibility(ctx context.Context, facet workflow.Facet, id *string, displayed, transparent bool) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.VisibilityChanged{Facet: facet, ID: id, Displayed: displayed, Transparent: transparent})
}

func (e *Engine) SwapVisibility(ctx context.Context) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.VisibilityStatesSwapped{})
}

func (e *Engine) SetLabelColor(ctx context.Context, label types.Label, c types.ColorDef) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.LabelColorChanged{Label: label, Color: c})
}

func (e *Engine) SetLabelExpanded(ctx context.Context, label types.Label, expanded bool) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.LabelExpandStateChanged{Label: label, Expanded: expanded})
}

func (e *Engine) SetColorMode(ctx context.Context, mode types.ColorMode) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.ColorModeChanged{Mode: mode})
}

func (e *Engine) SetForceShowAll(ctx context.Context, enabled bool) (*workflow.State, error) {
	return e.dispatch(ctx, workflow.ForceShowAllChanged{Enabled: enabled})
}

// selectWhere replaces the selection with the selectable elements matching
// keep, in catalog order.
func (e *Engine) selectWhere(ctx context.Context, keep func(*types.ElementState) bool) ([]string, error) {
	st := e.State()
	cat, err := st.Catalog()
	if err != nil {
		return nil, err
	}
	selectable, err := e.selectors.SelectableSet(st)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	cat.Range(func(s *types.ElementState) bool {
		if selectable.Has(s.ElementID) && keep(s) {
			ids = append(ids, s.ElementID)
		}
		return true
	})
	return ids, e.ReplaceSelection(ctx, ids)
}

func all(*types.ElementState) bool { return true }

// SelectModel selects the selectable elements of a model, or of all models
// when id is nil.
func (e *Engine) SelectModel(ctx context.Context, id *string) ([]string, error) {
	if id == nil {
		return e.selectWhere(ctx, all)
	}
	return e.selectWhere(ctx, func(s *types.ElementState) bool { return s.ModelID == *id })
}

func (e *Engine) SelectCategory(ctx context.Context, id *string) ([]string, error) {
	if id == nil {
		return e.selectWhere(ctx, all)
	}
	return e.selectWhere(ctx, func(s *types.ElementState) bool { return s.CategoryID == *id })
}

func (e *Engine) SelectClass(ctx context.Context, id *string) ([]string, error) {
	if id == nil {
		return e.selectWhere(ctx, all)
	}
	return e.selectWhere(ctx, func(s *types.ElementState) bool { return s.ClassID == *id })
}

// SelectLabel selects by true label. A collapsed label also selects its
// children, recursively while they are collapsed too.
func (e *Engine) SelectLabel(ctx context.Context, label *types.Label) ([]string, error) {
	if label == nil {
		return e.selectWhere(ctx, all)
	}
	accept := e.collapsedClosure(*label)
	return e.selectWhere(ctx, func(s *types.ElementState) bool { return accept[s.TrueLabel] })
}

// SelectPrediction selects by predicted label, like SelectLabel.
func (e *Engine) SelectPrediction(ctx context.Context, label *types.Label) ([]string, error) {
	if label == nil {
		return e.selectWhere(ctx, all)
	}
	accept := e.collapsedClosure(*label)
	return e.selectWhere(ctx, func(s *types.ElementState) bool { return accept[s.PredLabel] })
}

func (e *Engine) collapsedClosure(root types.Label) map[types.Label]bool {
	labels := e.State().Labels
	accept := map[types.Label]bool{}
	var walk func(types.Label)
	walk = func(l types.Label) {
		if accept[l] {
			return
		}
		accept[l] = true
		if labels.IsExpanded(l) {
			return
		}
		for _, c := range labels.Children(l) {
			walk(c)
		}
	}
	walk(root)
	return accept
}

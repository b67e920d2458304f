package workflow

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/types"
)

var (
	// ErrUnknownFacet is returned for a visibility change on an unknown facet.
	ErrUnknownFacet = errors.New("unknown facet")
	// ErrNotReady is returned for label edits before DataInitialized.
	ErrNotReady     = errors.New("labeling data not initialized")
	ErrUnknownLabel = errors.New("unknown label")
)

// checkLabel validates a label edit against the state it applies to.
func checkLabel(s *State, label types.Label) error {
	if !s.Ready {
		return ErrNotReady
	}
	if label != s.Unlabeled && !s.Labels.Has(label) {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return nil
}

// Reduce applies a to prev and returns the next state. prev is never
// modified. On error the caller keeps prev.
func Reduce(prev *State, a Action) (*State, error) {
	switch a := a.(type) {
	case DataInitialized:
		next := *prev
		next.Ready = true
		next.History = history.New(a.Catalog, a.HistoryCap)
		next.Models = a.Models
		next.Categories = a.Categories
		next.Classes = a.Classes
		next.TrueLabels = a.TrueLabels
		next.PredLabels = a.PredLabels
		next.Labels = a.Labels
		next.Unlabeled = a.Unlabeled
		return &next, nil

	case SelectionChanged:
		next := *prev
		next.Selection = NewSelection(a.IDs)
		return &next, nil

	case ElementLabelsChanged:
		if err := checkLabel(prev, a.Label); err != nil {
			return nil, err
		}
		return applyLabel(prev, a.IDs, a.Label)

	case SelectionLabelChanged:
		if err := checkLabel(prev, a.Label); err != nil {
			return nil, err
		}
		return applyLabel(prev, prev.Selection.IDs(), a.Label)

	case UndoRequested:
		next := *prev
		next.History = prev.History.Undo()
		return &next, nil

	case RedoRequested:
		next := *prev
		next.History = prev.History.Redo()
		return &next, nil

	case LabelsSaved:
		next := *prev
		if a.Snapshot != nil {
			next.History = prev.History.MarkSavedIf(a.Snapshot)
		} else {
			next.History = prev.History.MarkSaved()
		}
		return &next, nil

	case VisibilityChanged:
		return changeVisibility(prev, a)

	case VisibilityStatesSwapped:
		return swapVisibility(prev), nil

	case LabelColorChanged:
		if err := checkLabel(prev, a.Label); err != nil {
			return nil, err
		}
		next := *prev
		next.Labels = prev.Labels.WithColor(a.Label, a.Color)
		return &next, nil

	case LabelExpandStateChanged:
		if err := checkLabel(prev, a.Label); err != nil {
			return nil, err
		}
		next := *prev
		next.Labels = prev.Labels.WithExpanded(a.Label, a.Expanded)
		return &next, nil

	case ColorModeChanged:
		next := *prev
		next.ColorMode = a.Mode
		return &next, nil

	case ForceShowAllChanged:
		next := *prev
		next.ForceShowAll = a.Enabled
		return &next, nil

	case CycleActionStarted:
		return withCycle(prev, func(c *CycleState) { c.Working = true }), nil

	case CycleActionAborted:
		return withCycle(prev, func(c *CycleState) { c.Working = false }), nil

	case CycleEnabled:
		return withCycle(prev, func(c *CycleState) {
			c.Enabled = true
			c.Working = false
			c.List = append([]string(nil), a.List...)
			c.CurrentIndex = nil
			c.InitialFrustums = a.Frustums
		}), nil

	case CycleDisabled:
		return withCycle(prev, func(c *CycleState) {
			c.Enabled = false
			c.Working = false
			c.List = nil
			c.CurrentIndex = nil
			c.InitialFrustums = nil
		}), nil

	case CycleIndexChanged:
		return withCycle(prev, func(c *CycleState) {
			idx := a.Index
			c.CurrentIndex = &idx
			c.Working = false
		}), nil

	case CyclePopoutChanged:
		return withCycle(prev, func(c *CycleState) { c.PoppedOut = a.PoppedOut }), nil
	}
	return prev, nil
}

func applyLabel(prev *State, ids []string, label types.Label) (*State, error) {
	h, err := prev.History.Apply(ids, label)
	if err != nil {
		return nil, fmt.Errorf("applying label: %w", err)
	}
	if h == prev.History {
		return prev, nil
	}
	next := *prev
	next.History = h
	return &next, nil
}

func changeVisibility(prev *State, a VisibilityChanged) (*State, error) {
	m := prev.facet(a.Facet)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, a.Facet)
	}
	if a.ID == nil {
		return prev.withFacet(a.Facet, m.WithVisibility(nil, a.Displayed, a.Transparent)), nil
	}
	ids := []string{*a.ID}
	if a.Facet == FacetTrueLabel || a.Facet == FacetPredLabel {
		desc, err := prev.Labels.Descendants(*a.ID)
		if err != nil {
			return nil, fmt.Errorf("cascading visibility: %w", err)
		}
		ids = append(ids, desc...)
	}
	return prev.withFacet(a.Facet, m.WithVisibility(ids, a.Displayed, a.Transparent)), nil
}

func swapVisibility(prev *State) *State {
	trueMap, predMap := prev.TrueLabels.clone(), prev.PredLabels.clone()
	for _, name := range prev.Labels.Order() {
		ts, okT := prev.TrueLabels.Get(name)
		ps, okP := prev.PredLabels.Get(name)
		if !okT || !okP {
			continue
		}
		ts.IsDisplayed, ps.IsDisplayed = ps.IsDisplayed, ts.IsDisplayed
		ts.IsTransparent, ps.IsTransparent = ps.IsTransparent, ts.IsTransparent
		trueMap.states[name] = ts
		predMap.states[name] = ps
	}
	next := *prev
	next.TrueLabels = trueMap
	next.PredLabels = predMap
	return &next
}

func withCycle(prev *State, edit func(*CycleState)) *State {
	c := *prev.Cycle
	edit(&c)
	next := *prev
	next.Cycle = &c
	return &next
}

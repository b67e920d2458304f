package workflow

import (
	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

// Action is a discrete state change handled by Reduce.
type Action interface {
	ActionType() string
}

// DataInitialized replaces the whole state with freshly loaded data.
type DataInitialized struct {
	Catalog    *history.Catalog
	HistoryCap int
	Models     *GroupMap
	Categories *GroupMap
	Classes    *GroupMap
	TrueLabels *GroupMap
	PredLabels *GroupMap
	Labels     *taxonomy.Labels
	Unlabeled  types.Label
}

// SelectionChanged records the viewer selection.
type SelectionChanged struct{ IDs []string }

// ElementLabelsChanged assigns a true label to the given elements.
type ElementLabelsChanged struct {
	IDs   []string
	Label types.Label
}

// SelectionLabelChanged assigns a true label to the current selection.
type SelectionLabelChanged struct{ Label types.Label }

type UndoRequested struct{}
type RedoRequested struct{}

// LabelsSaved clears the dirty flag. When Snapshot is set the flag is only
// cleared if that snapshot is still current.
type LabelsSaved struct{ Snapshot *history.Catalog }

// VisibilityChanged sets the display pair of one facet entry, or of every
// entry when ID is nil. Label facets cascade to descendants.
type VisibilityChanged struct {
	Facet       Facet
	ID          *string
	Displayed   bool
	Transparent bool
}

// VisibilityStatesSwapped exchanges the true and predicted label states.
type VisibilityStatesSwapped struct{}

type LabelColorChanged struct {
	Label types.Label
	Color types.ColorDef
}

type LabelExpandStateChanged struct {
	Label    types.Label
	Expanded bool
}

type ColorModeChanged struct{ Mode types.ColorMode }

type ForceShowAllChanged struct{ Enabled bool }

// CycleActionStarted marks a cycle transition in progress.
type CycleActionStarted struct{}

// CycleActionAborted ends a transition that made no change.
type CycleActionAborted struct{}

type CycleEnabled struct {
	List     []string
	Frustums map[string]types.Frustum
}

type CycleDisabled struct{}

type CycleIndexChanged struct{ Index int }

type CyclePopoutChanged struct{ PoppedOut bool }

func (DataInitialized) ActionType() string         { return "DataInitialized" }
func (SelectionChanged) ActionType() string        { return "SelectionChanged" }
func (ElementLabelsChanged) ActionType() string    { return "ElementLabelsChanged" }
func (SelectionLabelChanged) ActionType() string   { return "SelectionLabelChanged" }
func (UndoRequested) ActionType() string           { return "UndoRequested" }
func (RedoRequested) ActionType() string           { return "RedoRequested" }
func (LabelsSaved) ActionType() string             { return "LabelsSaved" }
func (VisibilityChanged) ActionType() string       { return "VisibilityChanged" }
func (VisibilityStatesSwapped) ActionType() string { return "VisibilityStatesSwapped" }
func (LabelColorChanged) ActionType() string       { return "LabelColorChanged" }
func (LabelExpandStateChanged) ActionType() string { return "LabelExpandStateChanged" }
func (ColorModeChanged) ActionType() string        { return "ColorModeChanged" }
func (ForceShowAllChanged) ActionType() string     { return "ForceShowAllChanged" }
func (CycleActionStarted) ActionType() string      { return "CycleActionStarted" }
func (CycleActionAborted) ActionType() string      { return "CycleActionAborted" }
func (CycleEnabled) ActionType() string            { return "CycleEnabled" }
func (CycleDisabled) ActionType() string           { return "CycleDisabled" }
func (CycleIndexChanged) ActionType() string       { return "CycleIndexChanged" }
func (CyclePopoutChanged) ActionType() string      { return "CyclePopoutChanged" }

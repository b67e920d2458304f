// Package workflow holds the labeling state tree, the actions that change it
// and the reducer applying them.
package workflow

import (
	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

// Facet identifies one grouping axis.
type Facet string

const (
	FacetModel     Facet = "model"
	FacetCategory  Facet = "category"
	FacetClass     Facet = "class"
	FacetTrueLabel Facet = "true_label"
	FacetPredLabel Facet = "pred_label"
)

// CycleState tracks cycle mode. CurrentIndex is nil until the first step.
type CycleState struct {
	Working         bool                     `json:"working"`
	Enabled         bool                     `json:"enabled"`
	CurrentIndex    *int                     `json:"current_index,omitempty"`
	List            []string                 `json:"cycle_list,omitempty"`
	InitialFrustums map[string]types.Frustum `json:"-"`
	PoppedOut       bool                     `json:"popped_out"`
}

// Has reports whether id is part of the active cycle list.
func (c *CycleState) Has(id string) bool {
	for _, x := range c.List {
		if x == id {
			return true
		}
	}
	return false
}

// State is the full labeling state. Every field is replaced, never mutated,
// so pointer identity tells whether a part changed.
type State struct {
	Ready        bool             `json:"ready"`
	Unlabeled    types.Label      `json:"unlabeled"`
	History      *history.History `json:"-"`
	Models       *GroupMap        `json:"models"`
	Categories   *GroupMap        `json:"categories"`
	Classes      *GroupMap        `json:"classes"`
	TrueLabels   *GroupMap        `json:"true_labels"`
	PredLabels   *GroupMap        `json:"pred_labels"`
	Labels       *taxonomy.Labels `json:"labels"`
	Selection    *Selection       `json:"selection"`
	ColorMode    types.ColorMode  `json:"color_mode"`
	ForceShowAll bool             `json:"force_show_all"`
	Cycle        *CycleState      `json:"cycle"`
}

// Initial returns the empty state used before data is loaded.
func Initial() *State {
	empty, _ := taxonomy.Build(nil)
	return &State{
		History:    history.New(history.NewCatalog(nil), 0),
		Models:     NewGroupMap(),
		Categories: NewGroupMap(),
		Classes:    NewGroupMap(),
		TrueLabels: NewGroupMap(),
		PredLabels: NewGroupMap(),
		Labels:     empty,
		Selection:  NewSelection(nil),
		ColorMode:  types.ColorModeNative,
		Cycle:      &CycleState{},
	}
}

// Catalog returns the current history snapshot.
func (s *State) Catalog() (*history.Catalog, error) {
	return s.History.Current()
}

// Dirty reports unsaved label edits.
func (s *State) Dirty() bool { return s.History.Dirty() }

func (s *State) facet(f Facet) *GroupMap {
	switch f {
	case FacetModel:
		return s.Models
	case FacetCategory:
		return s.Categories
	case FacetClass:
		return s.Classes
	case FacetTrueLabel:
		return s.TrueLabels
	case FacetPredLabel:
		return s.PredLabels
	}
	return nil
}

// Facet returns the group map of a facet, or nil for an unknown facet.
func (s *State) Facet(f Facet) *GroupMap { return s.facet(f) }

func (s *State) withFacet(f Facet, m *GroupMap) *State {
	next := *s
	switch f {
	case FacetModel:
		next.Models = m
	case FacetCategory:
		next.Categories = m
	case FacetClass:
		next.Classes = m
	case FacetTrueLabel:
		next.TrueLabels = m
	case FacetPredLabel:
		next.PredLabels = m
	}
	return &next
}

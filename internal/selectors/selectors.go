// Package selectors derives per-element render state and aggregate view
// models from the labeling state. Every derivation is memoized on the
// identity of its inputs. Returned maps and slices are shared between
// callers and must not be modified.
package selectors

import (
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

type facetsKey struct {
	catalog    *history.Catalog
	models     *workflow.GroupMap
	categories *workflow.GroupMap
	classes    *workflow.GroupMap
	trueLabels *workflow.GroupMap
	predLabels *workflow.GroupMap
}

type visibilityKey struct {
	facetsKey
	forceShowAll bool
}

type transparencyKey struct {
	facetsKey
	labels       *taxonomy.Labels
	confusion    bool
	cycle        *workflow.CycleState
	forceShowAll bool
}

type colorKey struct {
	catalog *history.Catalog
	labels  *taxonomy.Labels
	mode    types.ColorMode
}

type emphasisKey struct {
	catalog *history.Catalog
	cycle   *workflow.CycleState
}

type overrideKey struct {
	vis   visibilityKey
	trans transparencyKey
	color colorKey
	emph  emphasisKey
}

type selectableKey struct {
	vis   visibilityKey
	trans transparencyKey
}

type validSelectionKey struct {
	selectable selectableKey
	selection  *workflow.Selection
}

type tableKey struct {
	group     *workflow.GroupMap
	vis       visibilityKey
	selection *workflow.Selection
}

type mlTableKey struct {
	vis       visibilityKey
	labels    *taxonomy.Labels
	selection *workflow.Selection
}

// Selectors holds the memo cells for one engine instance.
type Selectors struct {
	// FilterSelectionCounts counts a selected element toward a table row
	// only while the element is visible.
	FilterSelectionCounts bool

	visibility     memo[visibilityKey, map[string]bool]
	transparency   memo[transparencyKey, map[string]bool]
	colors         memo[colorKey, map[string]types.ColorDef]
	emphasis       memo[emphasisKey, map[string]bool]
	overrides      memo[overrideKey, []types.ElementOverride]
	selectable     memo[selectableKey, *workflow.Selection]
	validSelection memo[validSelectionKey, *workflow.Selection]
	trueLabelMap   memo[*history.Catalog, map[string]types.Label]
	modelTable     memo[tableKey, []types.TableItem]
	categoryTable  memo[tableKey, []types.TableItem]
	classTable     memo[tableKey, []types.TableItem]
	mlTable        memo[mlTableKey, *MLTable]
	tree           memo[*taxonomy.Labels, []types.TreeEntry]
}

// New creates a Selectors with selection counts filtered by visibility.
func New() *Selectors {
	return &Selectors{FilterSelectionCounts: true}
}

// Recomputes reports how often each derivation ran, keyed by name.
func (s *Selectors) Recomputes() map[string]int {
	return map[string]int{
		"visibility":      s.visibility.recomputes(),
		"transparency":    s.transparency.recomputes(),
		"colors":          s.colors.recomputes(),
		"emphasis":        s.emphasis.recomputes(),
		"overrides":       s.overrides.recomputes(),
		"selectable":      s.selectable.recomputes(),
		"valid_selection": s.validSelection.recomputes(),
		"true_label_map":  s.trueLabelMap.recomputes(),
		"model_table":     s.modelTable.recomputes(),
		"category_table":  s.categoryTable.recomputes(),
		"class_table":     s.classTable.recomputes(),
		"ml_table":        s.mlTable.recomputes(),
		"tree":            s.tree.recomputes(),
	}
}

func keyFacets(st *workflow.State) (facetsKey, error) {
	cat, err := st.Catalog()
	if err != nil {
		return facetsKey{}, fmt.Errorf("current snapshot: %w", err)
	}
	return facetsKey{
		catalog:    cat,
		models:     st.Models,
		categories: st.Categories,
		classes:    st.Classes,
		trueLabels: st.TrueLabels,
		predLabels: st.PredLabels,
	}, nil
}

func keyVisibility(st *workflow.State) (visibilityKey, error) {
	f, err := keyFacets(st)
	return visibilityKey{facetsKey: f, forceShowAll: st.ForceShowAll}, err
}

func keyTransparency(st *workflow.State) (transparencyKey, error) {
	f, err := keyFacets(st)
	return transparencyKey{
		facetsKey:    f,
		labels:       st.Labels,
		confusion:    st.ColorMode.IsConfusion(),
		cycle:        st.Cycle,
		forceShowAll: st.ForceShowAll,
	}, err
}

func keyColor(st *workflow.State) (colorKey, error) {
	cat, err := st.Catalog()
	return colorKey{catalog: cat, labels: st.Labels, mode: st.ColorMode}, err
}

func keyEmphasis(st *workflow.State) (emphasisKey, error) {
	cat, err := st.Catalog()
	return emphasisKey{catalog: cat, cycle: st.Cycle}, err
}

// Snapshot returns the current element catalog.
func (s *Selectors) Snapshot(st *workflow.State) (*history.Catalog, error) {
	return st.Catalog()
}

// Visibility maps every element to whether it is drawn.
func (s *Selectors) Visibility(st *workflow.State) (map[string]bool, error) {
	key, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	return s.visibility.get(key, func() (map[string]bool, error) {
		out := make(map[string]bool, key.catalog.Len())
		key.catalog.Range(func(e *types.ElementState) bool {
			visible := key.models.Lookup(e.ModelID).IsDisplayed &&
				key.categories.Lookup(e.CategoryID).IsDisplayed &&
				key.classes.Lookup(e.ClassID).IsDisplayed &&
				key.predLabels.Lookup(e.PredLabel).IsDisplayed &&
				key.trueLabels.Lookup(e.TrueLabel).IsDisplayed
			if key.forceShowAll {
				visible = true
			}
			out[e.ElementID] = visible
			return true
		})
		return out, nil
	})
}

// Transparency maps every element to whether it is drawn transparent.
func (s *Selectors) Transparency(st *workflow.State) (map[string]bool, error) {
	key, err := keyTransparency(st)
	if err != nil {
		return nil, err
	}
	return s.transparency.get(key, func() (map[string]bool, error) {
		out := make(map[string]bool, key.catalog.Len())
		key.catalog.Range(func(e *types.ElementState) bool {
			transparent := key.models.Lookup(e.ModelID).IsTransparent ||
				key.categories.Lookup(e.CategoryID).IsTransparent ||
				key.classes.Lookup(e.ClassID).IsTransparent ||
				key.predLabels.Lookup(e.PredLabel).IsTransparent ||
				key.trueLabels.Lookup(e.TrueLabel).IsTransparent
			if key.confusion && key.labels.Match(e.TrueLabel, e.PredLabel) {
				transparent = true
			}
			if key.cycle.Enabled && !key.cycle.Has(e.ElementID) {
				transparent = true
			}
			if key.forceShowAll {
				transparent = false
			}
			out[e.ElementID] = transparent
			return true
		})
		return out, nil
	})
}

// Colors maps elements to their color override. Elements without an
// override are absent.
func (s *Selectors) Colors(st *workflow.State) (map[string]types.ColorDef, error) {
	key, err := keyColor(st)
	if err != nil {
		return nil, err
	}
	return s.colors.get(key, func() (map[string]types.ColorDef, error) {
		out := make(map[string]types.ColorDef)
		if key.mode == types.ColorModeNative {
			return out, nil
		}
		usePred := key.mode == types.ColorModePrediction || key.mode == types.ColorModeConfusionsWithPrediction
		key.catalog.Range(func(e *types.ElementState) bool {
			label := e.TrueLabel
			if usePred {
				label = e.PredLabel
			}
			if c, ok := key.labels.Color(label); ok {
				out[e.ElementID] = c
			}
			return true
		})
		return out, nil
	})
}

// Emphasis maps elements to whether they belong to the active cycle list.
func (s *Selectors) Emphasis(st *workflow.State) (map[string]bool, error) {
	key, err := keyEmphasis(st)
	if err != nil {
		return nil, err
	}
	return s.emphasis.get(key, func() (map[string]bool, error) {
		out := make(map[string]bool, key.catalog.Len())
		members := make(map[string]bool, len(key.cycle.List))
		for _, id := range key.cycle.List {
			members[id] = true
		}
		key.catalog.Range(func(e *types.ElementState) bool {
			out[e.ElementID] = key.cycle.Enabled && members[e.ElementID]
			return true
		})
		return out, nil
	})
}

// Overrides materializes the render tuple of every element in catalog order.
func (s *Selectors) Overrides(st *workflow.State) ([]types.ElementOverride, error) {
	vk, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	tk, _ := keyTransparency(st)
	ck, _ := keyColor(st)
	ek, _ := keyEmphasis(st)
	key := overrideKey{vis: vk, trans: tk, color: ck, emph: ek}
	return s.overrides.get(key, func() ([]types.ElementOverride, error) {
		vis, err := s.Visibility(st)
		if err != nil {
			return nil, err
		}
		trans, err := s.Transparency(st)
		if err != nil {
			return nil, err
		}
		colors, err := s.Colors(st)
		if err != nil {
			return nil, err
		}
		emph, err := s.Emphasis(st)
		if err != nil {
			return nil, err
		}
		out := make([]types.ElementOverride, 0, vk.catalog.Len())
		vk.catalog.Range(func(e *types.ElementState) bool {
			o := types.ElementOverride{
				ElementID:     e.ElementID,
				IsVisible:     vis[e.ElementID],
				IsTransparent: trans[e.ElementID],
				IsEmphasized:  emph[e.ElementID],
			}
			if c, ok := colors[e.ElementID]; ok {
				o.Color = &c
			}
			out = append(out, o)
			return true
		})
		return out, nil
	})
}

// SelectableSet holds every element that is visible and opaque.
func (s *Selectors) SelectableSet(st *workflow.State) (*workflow.Selection, error) {
	vk, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	tk, _ := keyTransparency(st)
	return s.selectable.get(selectableKey{vis: vk, trans: tk}, func() (*workflow.Selection, error) {
		vis, err := s.Visibility(st)
		if err != nil {
			return nil, err
		}
		trans, err := s.Transparency(st)
		if err != nil {
			return nil, err
		}
		var ids []string
		vk.catalog.Range(func(e *types.ElementState) bool {
			if vis[e.ElementID] && !trans[e.ElementID] {
				ids = append(ids, e.ElementID)
			}
			return true
		})
		return workflow.NewSelection(ids), nil
	})
}

// ValidSelection is the current selection restricted to selectable elements,
// in selection order.
func (s *Selectors) ValidSelection(st *workflow.State) (*workflow.Selection, error) {
	vk, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	tk, _ := keyTransparency(st)
	key := validSelectionKey{selectable: selectableKey{vis: vk, trans: tk}, selection: st.Selection}
	return s.validSelection.get(key, func() (*workflow.Selection, error) {
		selectable, err := s.SelectableSet(st)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, id := range st.Selection.IDs() {
			if selectable.Has(id) {
				ids = append(ids, id)
			}
		}
		return workflow.NewSelection(ids), nil
	})
}

// TrueLabelMap maps every element to its true label in the current snapshot.
func (s *Selectors) TrueLabelMap(st *workflow.State) (map[string]types.Label, error) {
	cat, err := st.Catalog()
	if err != nil {
		return nil, err
	}
	return s.trueLabelMap.get(cat, func() (map[string]types.Label, error) {
		out := make(map[string]types.Label, cat.Len())
		cat.Range(func(e *types.ElementState) bool {
			out[e.ElementID] = e.TrueLabel
			return true
		})
		return out, nil
	})
}

// CanUndo reports whether an earlier snapshot exists.
func (s *Selectors) CanUndo(st *workflow.State) bool { return st.History.CanUndo() }

// CanRedo reports whether a later snapshot exists.
func (s *Selectors) CanRedo(st *workflow.State) bool { return st.History.CanRedo() }

package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

func strPtr(s string) *string { return &s }

func shown(ids ...string) *GroupMap {
	entries := make([]GroupEntry, len(ids))
	for i, id := range ids {
		entries[i] = GroupEntry{ID: id, GroupState: types.GroupState{IsDisplayed: true}}
	}
	return NewGroupMap(entries...)
}

func loaded(t *testing.T) *State {
	t.Helper()
	labels, err := taxonomy.Build([]types.LabelDefinition{
		{Label: "other", ParentLabel: "other"},
		{Label: "wall", ParentLabel: "other"},
		{Label: "curtainwall", ParentLabel: "wall"},
		{Label: "door", ParentLabel: "other"},
		{Label: "beam"},
	})
	require.NoError(t, err)
	names := labels.Order()
	s, err := Reduce(Initial(), DataInitialized{
		Catalog: history.NewCatalog([]types.ElementState{
			{ElementID: "e1", ModelID: "m1", TrueLabel: "wall", PredLabel: "wall"},
			{ElementID: "e2", ModelID: "m2", TrueLabel: "door", PredLabel: "beam"},
		}),
		Models:     shown("m1", "m2"),
		Categories: shown("c1"),
		Classes:    shown("k1"),
		TrueLabels: shown(names...),
		PredLabels: shown(names...),
		Labels:     labels,
		Unlabeled:  "unlabeled",
	})
	require.NoError(t, err)
	return s
}

func reduce(t *testing.T, s *State, a Action) *State {
	t.Helper()
	next, err := Reduce(s, a)
	require.NoError(t, err)
	return next
}

func TestReduce_DataInitialized(t *testing.T) {
	s := loaded(t)
	assert.True(t, s.Ready)
	assert.Equal(t, 2, s.Models.Len())
	cat, err := s.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	assert.False(t, s.Dirty())
}

func TestReduce_StructuralFacetNoCascade(t *testing.T) {
	s := loaded(t)
	next := reduce(t, s, VisibilityChanged{Facet: FacetModel, ID: strPtr("m1"), Displayed: false, Transparent: true})

	m1, _ := next.Models.Get("m1")
	assert.False(t, m1.IsDisplayed)
	assert.True(t, m1.IsTransparent)
	m2, _ := next.Models.Get("m2")
	assert.True(t, m2.IsDisplayed)
	assert.Same(t, s.Categories, next.Categories)

	m1, _ = s.Models.Get("m1")
	assert.True(t, m1.IsDisplayed, "previous state untouched")
}

func TestReduce_VisibilityAll(t *testing.T) {
	s := loaded(t)
	next := reduce(t, s, VisibilityChanged{Facet: FacetClass, Displayed: false})
	next.Classes.Range(func(_ string, g types.GroupState) bool {
		assert.False(t, g.IsDisplayed)
		return true
	})

	next = reduce(t, s, VisibilityChanged{Facet: FacetPredLabel, Displayed: false})
	next.PredLabels.Range(func(_ string, g types.GroupState) bool {
		assert.False(t, g.IsDisplayed)
		return true
	})
}

func TestReduce_LabelVisibilityCascades(t *testing.T) {
	s := loaded(t)
	next := reduce(t, s, VisibilityChanged{Facet: FacetTrueLabel, ID: strPtr("wall"), Displayed: false})

	for _, l := range []string{"wall", "curtainwall"} {
		g, _ := next.TrueLabels.Get(l)
		assert.False(t, g.IsDisplayed, l)
	}
	for _, l := range []string{"other", "door", "beam"} {
		g, _ := next.TrueLabels.Get(l)
		assert.True(t, g.IsDisplayed, l)
	}
	g, _ := next.PredLabels.Get("wall")
	assert.True(t, g.IsDisplayed, "other facet untouched")
}

func TestReduce_UnknownFacet(t *testing.T) {
	_, err := Reduce(loaded(t), VisibilityChanged{Facet: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownFacet)
}

func TestReduce_Swap(t *testing.T) {
	s := loaded(t)
	s = reduce(t, s, VisibilityChanged{Facet: FacetTrueLabel, ID: strPtr("door"), Displayed: false, Transparent: true})
	s = reduce(t, s, VisibilityStatesSwapped{})

	tr, _ := s.TrueLabels.Get("door")
	pr, _ := s.PredLabels.Get("door")
	assert.True(t, tr.IsDisplayed)
	assert.False(t, tr.IsTransparent)
	assert.False(t, pr.IsDisplayed)
	assert.True(t, pr.IsTransparent)
}

func TestReduce_SelectionLabel(t *testing.T) {
	s := loaded(t)
	s = reduce(t, s, SelectionChanged{IDs: []string{"e2", "e2", "missing"}})
	assert.Equal(t, []string{"e2", "missing"}, s.Selection.IDs())

	s = reduce(t, s, SelectionLabelChanged{Label: "beam"})
	cat, _ := s.Catalog()
	e, _ := cat.Get("e2")
	assert.Equal(t, "beam", e.TrueLabel)
	assert.True(t, s.Dirty())
	assert.True(t, s.History.CanUndo())
}

func TestReduce_EmptySelectionLabelIsNoop(t *testing.T) {
	s := loaded(t)
	next := reduce(t, s, SelectionLabelChanged{Label: "beam"})
	assert.Same(t, s, next)
}

func TestReduce_UndoRedoSave(t *testing.T) {
	s := loaded(t)
	s = reduce(t, s, ElementLabelsChanged{IDs: []string{"e1"}, Label: "door"})
	saved, _ := s.Catalog()

	s = reduce(t, s, UndoRequested{})
	assert.Equal(t, 0, s.History.Index())
	s = reduce(t, s, RedoRequested{})
	cur, _ := s.Catalog()
	assert.Same(t, saved, cur)

	s = reduce(t, s, LabelsSaved{Snapshot: saved})
	assert.False(t, s.Dirty())

	s = reduce(t, s, UndoRequested{})
	s = reduce(t, s, LabelsSaved{Snapshot: saved})
	assert.True(t, s.Dirty(), "stale save")
	s = reduce(t, s, LabelsSaved{})
	assert.False(t, s.Dirty())
}

func TestReduce_ColorExpandModes(t *testing.T) {
	s := loaded(t)
	s = reduce(t, s, LabelColorChanged{Label: "wall", Color: types.RGB(1, 2, 3)})
	c, _ := s.Labels.Color("wall")
	assert.Equal(t, types.RGB(1, 2, 3), c)

	s = reduce(t, s, LabelExpandStateChanged{Label: "other", Expanded: true})
	assert.True(t, s.Labels.IsExpanded("other"))

	s = reduce(t, s, ColorModeChanged{Mode: types.ColorModePrediction})
	assert.Equal(t, types.ColorModePrediction, s.ColorMode)

	s = reduce(t, s, ForceShowAllChanged{Enabled: true})
	assert.True(t, s.ForceShowAll)
}

func TestReduce_CycleLifecycle(t *testing.T) {
	s := loaded(t)
	s = reduce(t, s, CycleActionStarted{})
	assert.True(t, s.Cycle.Working)

	frustums := map[string]types.Frustum{"vp1": {}}
	s = reduce(t, s, CycleEnabled{List: []string{"e1", "e2"}, Frustums: frustums})
	assert.True(t, s.Cycle.Enabled)
	assert.False(t, s.Cycle.Working)
	assert.Nil(t, s.Cycle.CurrentIndex)
	assert.True(t, s.Cycle.Has("e2"))

	s = reduce(t, s, CycleIndexChanged{Index: 1})
	require.NotNil(t, s.Cycle.CurrentIndex)
	assert.Equal(t, 1, *s.Cycle.CurrentIndex)

	s = reduce(t, s, CycleActionStarted{})
	s = reduce(t, s, CycleActionAborted{})
	assert.False(t, s.Cycle.Working)

	s = reduce(t, s, CycleDisabled{})
	assert.False(t, s.Cycle.Enabled)
	assert.Empty(t, s.Cycle.List)
	assert.Nil(t, s.Cycle.CurrentIndex)
}

func TestCascadeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "labels")
		defs := make([]types.LabelDefinition, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("l%d", i)
			parent := name
			if i > 0 && rapid.Bool().Draw(t, "hasParent") {
				parent = fmt.Sprintf("l%d", rapid.IntRange(0, i-1).Draw(t, "parent"))
			}
			defs[i] = types.LabelDefinition{Label: name, ParentLabel: parent}
		}
		labels, err := taxonomy.Build(defs)
		if err != nil {
			t.Fatal(err)
		}
		names := labels.Order()
		s, _ := Reduce(Initial(), DataInitialized{
			Catalog:    history.NewCatalog(nil),
			Models:     NewGroupMap(),
			Categories: NewGroupMap(),
			Classes:    NewGroupMap(),
			TrueLabels: shown(names...),
			PredLabels: shown(names...),
			Labels:     labels,
		})
		target := rapid.SampledFrom(names).Draw(t, "target")
		next, err := Reduce(s, VisibilityChanged{Facet: FacetPredLabel, ID: &target, Displayed: false, Transparent: true})
		if err != nil {
			t.Fatal(err)
		}
		for _, name := range names {
			g, _ := next.PredLabels.Get(name)
			descendant := labels.IsAncestorOrSelf(target, name)
			if descendant && (g.IsDisplayed || !g.IsTransparent) {
				t.Fatalf("%s under %s not cascaded", name, target)
			}
			if !descendant && (!g.IsDisplayed || g.IsTransparent) {
				t.Fatalf("%s outside %s changed", name, target)
			}
		}
	})
}

func TestReduce_LabelEditsCheckTheStateTheyApplyTo(t *testing.T) {
	_, err := Reduce(Initial(), ElementLabelsChanged{IDs: []string{"e1"}, Label: "wall"})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = Reduce(Initial(), LabelColorChanged{Label: "wall"})
	assert.ErrorIs(t, err, ErrNotReady)

	s := loaded(t)
	for _, a := range []Action{
		ElementLabelsChanged{IDs: []string{"e1"}, Label: "roof"},
		SelectionLabelChanged{Label: "roof"},
		LabelColorChanged{Label: "roof"},
		LabelExpandStateChanged{Label: "roof", Expanded: true},
	} {
		_, err := Reduce(s, a)
		assert.ErrorIs(t, err, ErrUnknownLabel, a.ActionType())
	}

	s = reduce(t, s, ElementLabelsChanged{IDs: []string{"e1"}, Label: "unlabeled"})
	cat, _ := s.Catalog()
	e, _ := cat.Get("e1")
	assert.Equal(t, "unlabeled", e.TrueLabel)

	// A reload with a smaller taxonomy rejects labels it no longer defines.
	small, err := taxonomy.Build([]types.LabelDefinition{{Label: "door"}})
	require.NoError(t, err)
	s = reduce(t, s, DataInitialized{
		Catalog:    history.NewCatalog([]types.ElementState{{ElementID: "e1", TrueLabel: "door"}}),
		Models:     shown(),
		Categories: shown(),
		Classes:    shown(),
		TrueLabels: shown("door"),
		PredLabels: shown("door"),
		Labels:     small,
		Unlabeled:  "unlabeled",
	})
	_, err = Reduce(s, ElementLabelsChanged{IDs: []string{"e1"}, Label: "wall"})
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

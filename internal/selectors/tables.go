package selectors

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
	"github.com/matthewbaird/mllabeler/internal/workflow"
)

// ModelTable aggregates element counts per model.
func (s *Selectors) ModelTable(st *workflow.State) ([]types.TableItem, error) {
	return s.groupTable(st, &s.modelTable, st.Models, func(e *types.ElementState) string { return e.ModelID })
}

// CategoryTable aggregates element counts per category.
func (s *Selectors) CategoryTable(st *workflow.State) ([]types.TableItem, error) {
	return s.groupTable(st, &s.categoryTable, st.Categories, func(e *types.ElementState) string { return e.CategoryID })
}

// ClassTable aggregates element counts per class.
func (s *Selectors) ClassTable(st *workflow.State) ([]types.TableItem, error) {
	return s.groupTable(st, &s.classTable, st.Classes, func(e *types.ElementState) string { return e.ClassID })
}

func (s *Selectors) groupTable(
	st *workflow.State,
	cell *memo[tableKey, []types.TableItem],
	group *workflow.GroupMap,
	groupOf func(*types.ElementState) string,
) ([]types.TableItem, error) {
	vk, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	key := tableKey{group: group, vis: vk, selection: st.Selection}
	filter := s.FilterSelectionCounts
	return cell.get(key, func() ([]types.TableItem, error) {
		vis, err := s.Visibility(st)
		if err != nil {
			return nil, err
		}
		total := map[string]int{}
		visible := map[string]int{}
		selected := map[string]int{}
		vk.catalog.Range(func(e *types.ElementState) bool {
			g := groupOf(e)
			total[g]++
			if vis[e.ElementID] {
				visible[g]++
			}
			if (!filter || vis[e.ElementID]) && key.selection.Has(e.ElementID) {
				selected[g]++
			}
			return true
		})

		items := make([]types.TableItem, 0, group.Len())
		group.Range(func(id string, g types.GroupState) bool {
			label := g.DisplayLabel
			if label == "" {
				label = id
			}
			items = append(items, types.TableItem{
				GroupID:       id,
				DisplayLabel:  label,
				IsDisplayed:   g.IsDisplayed,
				IsTransparent: g.IsTransparent,
				TotalCount:    total[id],
				VisibleCount:  visible[id],
				SelectedCount: selected[id],
			})
			return true
		})
		return items, nil
	})
}

// MLTable is the label table: one row per label known to either label
// facet, in facet order.
type MLTable struct {
	Items []types.MLTableItem
	index map[types.Label]int
}

// Get returns the row of a label.
func (t *MLTable) Get(name types.Label) (types.MLTableItem, bool) {
	i, ok := t.index[name]
	if !ok {
		return types.MLTableItem{}, false
	}
	return t.Items[i], true
}

func (t *MLTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Items)
}

type labelCounts struct {
	total, visible, selected map[types.Label]int
}

func newLabelCounts() labelCounts {
	return labelCounts{total: map[types.Label]int{}, visible: map[types.Label]int{}, selected: map[types.Label]int{}}
}

// MLTable aggregates true and predicted label counts. A row carries its own
// counts plus, when the row is collapsed, the counts of its whole subtree.
func (s *Selectors) MLTable(st *workflow.State) (*MLTable, error) {
	vk, err := keyVisibility(st)
	if err != nil {
		return nil, err
	}
	key := mlTableKey{vis: vk, labels: st.Labels, selection: st.Selection}
	filter := s.FilterSelectionCounts
	return s.mlTable.get(key, func() (*MLTable, error) {
		vis, err := s.Visibility(st)
		if err != nil {
			return nil, err
		}

		var names []types.Label
		seen := map[types.Label]bool{}
		for _, m := range []*workflow.GroupMap{vk.trueLabels, vk.predLabels} {
			for _, name := range m.Keys() {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}

		trueCounts, predCounts := newLabelCounts(), newLabelCounts()
		hasData := map[types.Label]bool{}
		count := func(c labelCounts, label types.Label, id string) {
			hasData[label] = true
			c.total[label]++
			if vis[id] {
				c.visible[label]++
			}
			if (!filter || vis[id]) && key.selection.Has(id) {
				c.selected[label]++
			}
		}
		vk.catalog.Range(func(e *types.ElementState) bool {
			if e.TrueLabel != "" {
				count(trueCounts, e.TrueLabel, e.ElementID)
			}
			if e.PredLabel != "" {
				count(predCounts, e.PredLabel, e.ElementID)
			}
			return true
		})

		table := &MLTable{Items: make([]types.MLTableItem, 0, len(names)), index: make(map[types.Label]int, len(names))}
		for _, name := range names {
			color, ok := key.labels.Color(name)
			if !ok {
				color = types.White
			}
			tr, okT := vk.trueLabels.Get(name)
			if !okT {
				tr = types.DefaultGroupState
			}
			pr, okP := vk.predLabels.Get(name)
			if !okP {
				pr = types.DefaultGroupState
			}
			item := types.MLTableItem{
				Name:                   name,
				Color:                  color,
				HasData:                hasData[name],
				TrueLabelIsDisplayed:   tr.IsDisplayed,
				TrueLabelIsTransparent: tr.IsTransparent,
				PredLabelIsDisplayed:   pr.IsDisplayed,
				PredLabelIsTransparent: pr.IsTransparent,
			}
			if err := rollUp(key.labels, name, &item, trueCounts, predCounts); err != nil {
				return nil, err
			}
			table.index[name] = len(table.Items)
			table.Items = append(table.Items, item)
		}
		return table, nil
	})
}

func rollUp(labels *taxonomy.Labels, root types.Label, item *types.MLTableItem, trueCounts, predCounts labelCounts) error {
	visited := map[types.Label]bool{}
	var walk func(name types.Label, force bool) error
	walk = func(name types.Label, force bool) error {
		if visited[name] {
			return fmt.Errorf("%w: %s revisited", taxonomy.ErrCyclic, name)
		}
		visited[name] = true
		item.TrueLabelTotalCount += trueCounts.total[name]
		item.TrueLabelVisibleCount += trueCounts.visible[name]
		item.TrueLabelSelectedCount += trueCounts.selected[name]
		item.PredLabelTotalCount += predCounts.total[name]
		item.PredLabelVisibleCount += predCounts.visible[name]
		item.PredLabelSelectedCount += predCounts.selected[name]
		if !labels.IsExpanded(name) || force {
			for _, child := range labels.Children(name) {
				if err := walk(child, true); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(root, false)
}

// Tree returns the label forest, or taxonomy.ErrCyclic for a malformed
// taxonomy.
func (s *Selectors) Tree(st *workflow.State) ([]types.TreeEntry, error) {
	return s.tree.get(st.Labels, st.Labels.Tree)
}

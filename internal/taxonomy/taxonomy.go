// Package taxonomy holds the label forest: per-label color, parent and
// derived children, plus the walks used for cascade, rollup and matching.
package taxonomy

import (
	"errors"
	"fmt"
	"log"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// ErrCyclic is returned when the parent pointers of the taxonomy form a loop.
var ErrCyclic = errors.New("label graph/tree must be acyclical")

// ErrDuplicate is returned when a label is defined twice.
var ErrDuplicate = errors.New("duplicate label definition")

// LabelState is the shared (facet independent) state of one label.
type LabelState struct {
	Label       types.Label    `json:"label"`
	Color       types.ColorDef `json:"color"`
	ParentLabel types.Label    `json:"parent_label,omitempty"`
	Children    []types.Label  `json:"children_labels"`
	IsExpanded  bool           `json:"is_expanded"`
}

// Labels is an immutable, insertion-ordered set of label states. Edits return
// a new value; untouched states are shared.
type Labels struct {
	order  []types.Label
	states map[types.Label]*LabelState
}

// Build derives label states from definitions. A parent equal to the label
// itself marks a root. Parents that are not defined are treated as roots.
func Build(defs []types.LabelDefinition) (*Labels, error) {
	l := &Labels{states: make(map[types.Label]*LabelState, len(defs))}
	for _, d := range defs {
		if _, ok := l.states[d.Label]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, d.Label)
		}
		color := types.White
		if d.DefaultColor != nil {
			color = *d.DefaultColor
		}
		parent := d.ParentLabel
		if parent == d.Label {
			parent = ""
		}
		l.order = append(l.order, d.Label)
		l.states[d.Label] = &LabelState{Label: d.Label, Color: color, ParentLabel: parent}
	}
	for _, name := range l.order {
		s := l.states[name]
		if s.ParentLabel == "" {
			continue
		}
		p, ok := l.states[s.ParentLabel]
		if !ok {
			log.Printf("taxonomy: label %s has unknown parent %s, treating as root", name, s.ParentLabel)
			s.ParentLabel = ""
			continue
		}
		p.Children = append(p.Children, name)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// validate checks that the parent graph is a forest.
func (l *Labels) validate() error {
	g := simple.NewDirectedGraph()
	ids := make(map[types.Label]int64, len(l.order))
	for i, name := range l.order {
		ids[name] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}
	for _, name := range l.order {
		for _, c := range l.states[name].Children {
			if c == name {
				return fmt.Errorf("%w: %s is its own child", ErrCyclic, name)
			}
			g.SetEdge(g.NewEdge(simple.Node(ids[name]), simple.Node(ids[c])))
		}
	}
	if _, err := topo.Sort(g); err != nil {
		return fmt.Errorf("%w: %v", ErrCyclic, err)
	}
	return nil
}

// Len returns the number of labels.
func (l *Labels) Len() int { return len(l.order) }

// Order returns the labels in definition order.
func (l *Labels) Order() []types.Label {
	out := make([]types.Label, len(l.order))
	copy(out, l.order)
	return out
}

// Get returns the state of a label.
func (l *Labels) Get(label types.Label) (LabelState, bool) {
	s, ok := l.states[label]
	if !ok {
		return LabelState{}, false
	}
	return *s, true
}

// Has reports whether label is part of the taxonomy.
func (l *Labels) Has(label types.Label) bool {
	_, ok := l.states[label]
	return ok
}

// Color returns the label color, if the label is known.
func (l *Labels) Color(label types.Label) (types.ColorDef, bool) {
	s, ok := l.states[label]
	if !ok {
		return types.ColorDef{}, false
	}
	return s.Color, true
}

// Parent returns the parent label, or "" for roots and unknown labels.
func (l *Labels) Parent(label types.Label) types.Label {
	if s, ok := l.states[label]; ok {
		return s.ParentLabel
	}
	return ""
}

// Children returns the direct children of label.
func (l *Labels) Children(label types.Label) []types.Label {
	if s, ok := l.states[label]; ok {
		return s.Children
	}
	return nil
}

// IsExpanded reports the expand flag of a label.
func (l *Labels) IsExpanded(label types.Label) bool {
	if s, ok := l.states[label]; ok {
		return s.IsExpanded
	}
	return false
}

// Descendants returns every transitive descendant of label in depth-first
// order, excluding label itself.
func (l *Labels) Descendants(label types.Label) ([]types.Label, error) {
	var out []types.Label
	seen := map[types.Label]bool{label: true}
	var walk func(name types.Label) error
	walk = func(name types.Label) error {
		for _, c := range l.Children(name) {
			if seen[c] {
				return fmt.Errorf("%w: %s revisited", ErrCyclic, c)
			}
			seen[c] = true
			out = append(out, c)
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(label); err != nil {
		return nil, err
	}
	return out, nil
}

// IsAncestorOrSelf reports whether ancestor is reached by walking parent
// pointers upward from label.
func (l *Labels) IsAncestorOrSelf(ancestor, label types.Label) bool {
	seen := make(map[types.Label]bool)
	for cur := label; cur != ""; cur = l.Parent(cur) {
		if cur == ancestor {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

// Match reports whether either label is an ancestor of (or equal to) the other.
func (l *Labels) Match(trueLabel, predLabel types.Label) bool {
	return l.IsAncestorOrSelf(predLabel, trueLabel) || l.IsAncestorOrSelf(trueLabel, predLabel)
}

// WithColor returns a copy of l with the color of label replaced.
func (l *Labels) WithColor(label types.Label, c types.ColorDef) *Labels {
	return l.with(label, func(s *LabelState) { s.Color = c })
}

// WithExpanded returns a copy of l with the expand flag of label replaced.
func (l *Labels) WithExpanded(label types.Label, expanded bool) *Labels {
	return l.with(label, func(s *LabelState) { s.IsExpanded = expanded })
}

func (l *Labels) with(label types.Label, edit func(*LabelState)) *Labels {
	s, ok := l.states[label]
	if !ok {
		return l
	}
	next := &Labels{order: l.order, states: make(map[types.Label]*LabelState, len(l.states))}
	for k, v := range l.states {
		next.states[k] = v
	}
	cp := *s
	edit(&cp)
	next.states[label] = &cp
	return next
}

// Tree builds the label forest. Every label must be reachable from a root
// exactly once; otherwise ErrCyclic is returned.
func (l *Labels) Tree() ([]types.TreeEntry, error) {
	seen := make(map[types.Label]bool, len(l.order))
	var build func(name types.Label, level int) (types.TreeEntry, error)
	build = func(name types.Label, level int) (types.TreeEntry, error) {
		if seen[name] {
			return types.TreeEntry{}, fmt.Errorf("%w: %s revisited", ErrCyclic, name)
		}
		seen[name] = true
		entry := types.TreeEntry{
			Name:       name,
			IsExpanded: l.IsExpanded(name),
			Level:      level,
			Children:   []types.TreeEntry{},
		}
		for _, c := range l.Children(name) {
			child, err := build(c, level+1)
			if err != nil {
				return types.TreeEntry{}, err
			}
			entry.Children = append(entry.Children, child)
		}
		return entry, nil
	}

	var roots []types.TreeEntry
	for _, name := range l.order {
		if l.states[name].ParentLabel != "" {
			continue
		}
		entry, err := build(name, 0)
		if err != nil {
			return nil, err
		}
		roots = append(roots, entry)
	}
	if len(seen) != len(l.order) {
		return nil, fmt.Errorf("%w: %d labels unreachable from a root", ErrCyclic, len(l.order)-len(seen))
	}
	return roots, nil
}

// MarshalJSON renders the states in definition order.
func (l *Labels) MarshalJSON() ([]byte, error) {
	out := make([]LabelState, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.states[name])
	}
	return json.Marshal(out)
}

package workflow

import (
	"github.com/goccy/go-json"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// GroupEntry seeds one entry of a GroupMap.
type GroupEntry struct {
	ID string
	types.GroupState
}

// GroupMap is an immutable, ordered map of facet id to display state.
type GroupMap struct {
	order  []string
	states map[string]types.GroupState
}

// NewGroupMap builds a map keeping the order of entries.
func NewGroupMap(entries ...GroupEntry) *GroupMap {
	m := &GroupMap{states: make(map[string]types.GroupState, len(entries))}
	for _, e := range entries {
		if _, ok := m.states[e.ID]; !ok {
			m.order = append(m.order, e.ID)
		}
		m.states[e.ID] = e.GroupState
	}
	return m
}

func (m *GroupMap) Len() int { return len(m.order) }

// Keys returns the ids in insertion order.
func (m *GroupMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *GroupMap) Has(id string) bool {
	_, ok := m.states[id]
	return ok
}

// Get returns the state of id and whether it exists.
func (m *GroupMap) Get(id string) (types.GroupState, bool) {
	s, ok := m.states[id]
	return s, ok
}

// Lookup returns the state of id, or the displayed/opaque default on a miss.
func (m *GroupMap) Lookup(id string) types.GroupState {
	if s, ok := m.states[id]; ok {
		return s
	}
	return types.DefaultGroupState
}

// Range visits entries in order until fn returns false.
func (m *GroupMap) Range(fn func(id string, s types.GroupState) bool) {
	for _, id := range m.order {
		if !fn(id, m.states[id]) {
			return
		}
	}
}

// WithVisibility returns a copy in which the given ids (all ids when ids is
// nil) carry the displayed/transparent pair. Unknown ids are skipped.
func (m *GroupMap) WithVisibility(ids []string, displayed, transparent bool) *GroupMap {
	next := m.clone()
	apply := func(id string) {
		s, ok := next.states[id]
		if !ok {
			return
		}
		s.IsDisplayed = displayed
		s.IsTransparent = transparent
		next.states[id] = s
	}
	if ids == nil {
		for _, id := range m.order {
			apply(id)
		}
		return next
	}
	for _, id := range ids {
		apply(id)
	}
	return next
}

func (m *GroupMap) clone() *GroupMap {
	next := &GroupMap{order: m.order, states: make(map[string]types.GroupState, len(m.states))}
	for k, v := range m.states {
		next.states[k] = v
	}
	return next
}

type groupJSON struct {
	ID string `json:"id"`
	types.GroupState
}

// MarshalJSON renders the entries in order.
func (m *GroupMap) MarshalJSON() ([]byte, error) {
	out := make([]groupJSON, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, groupJSON{ID: id, GroupState: m.states[id]})
	}
	return json.Marshal(out)
}

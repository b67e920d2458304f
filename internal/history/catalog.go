package history

import (
	"github.com/matthewbaird/mllabeler/internal/types"
)

// Catalog is one immutable snapshot of every element's labeling state.
// Element pointers are shared between snapshots until an edit touches them.
type Catalog struct {
	order    []string
	elements map[string]*types.ElementState
}

// NewCatalog builds a catalog from element states, keeping their order.
// Later duplicates replace earlier ones.
func NewCatalog(states []types.ElementState) *Catalog {
	c := &Catalog{elements: make(map[string]*types.ElementState, len(states))}
	for i := range states {
		s := states[i]
		if _, ok := c.elements[s.ElementID]; !ok {
			c.order = append(c.order, s.ElementID)
		}
		c.elements[s.ElementID] = &s
	}
	return c
}

// Len returns the number of elements.
func (c *Catalog) Len() int { return len(c.order) }

// IDs returns the element ids in load order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.elements[id]
	return ok
}

// Get returns a copy of the element state.
func (c *Catalog) Get(id string) (types.ElementState, bool) {
	e, ok := c.elements[id]
	if !ok {
		return types.ElementState{}, false
	}
	return *e, true
}

// Lookup returns the shared element pointer. Callers must not modify it.
func (c *Catalog) Lookup(id string) *types.ElementState {
	return c.elements[id]
}

// Range calls fn for each element in load order until fn returns false.
// The element must not be modified.
func (c *Catalog) Range(fn func(e *types.ElementState) bool) {
	for _, id := range c.order {
		if !fn(c.elements[id]) {
			return
		}
	}
}

// WithTrueLabel returns a new catalog in which every id of ids present in c
// carries label. Only touched elements are copied.
func (c *Catalog) WithTrueLabel(ids []string, label types.Label) *Catalog {
	next := &Catalog{order: c.order, elements: make(map[string]*types.ElementState, len(c.elements))}
	for k, v := range c.elements {
		next.elements[k] = v
	}
	for _, id := range ids {
		e, ok := c.elements[id]
		if !ok {
			continue
		}
		cp := *e
		cp.TrueLabel = label
		next.elements[id] = &cp
	}
	return next
}

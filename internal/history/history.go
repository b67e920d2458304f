// Package history implements the bounded linear undo/redo store of element
// catalog snapshots.
package history

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// DefaultCap is the number of snapshots kept when no cap is configured.
const DefaultCap = 10

// ErrIndexOutOfRange signals a corrupted history index.
var ErrIndexOutOfRange = errors.New("history index out of range")

// History is an immutable value: every operation returns a new History and
// leaves the receiver untouched.
type History struct {
	snapshots []*Catalog
	index     int
	cap       int
	dirty     bool
}

// New starts a history at initial. A cap <= 0 selects DefaultCap.
func New(initial *Catalog, cap int) *History {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &History{snapshots: []*Catalog{initial}, cap: cap}
}

// Apply sets the true label of every id in ids. An empty id set returns h
// unchanged. Ids missing from the catalog are skipped. Future snapshots past
// the current index are discarded and the oldest snapshots are dropped once
// the cap is exceeded.
func (h *History) Apply(ids []string, label types.Label) (*History, error) {
	if len(ids) == 0 {
		return h, nil
	}
	cur, err := h.Current()
	if err != nil {
		return nil, err
	}
	snaps := make([]*Catalog, 0, h.index+2)
	snaps = append(snaps, h.snapshots[:h.index+1]...)
	snaps = append(snaps, cur.WithTrueLabel(ids, label))
	for len(snaps) > h.cap {
		snaps = snaps[1:]
	}
	return &History{snapshots: snaps, index: len(snaps) - 1, cap: h.cap, dirty: true}, nil
}

// Undo steps back one snapshot, floored at the first one. The dirty flag is
// set even when the index does not move.
func (h *History) Undo() *History {
	next := *h
	if next.index > 0 {
		next.index--
	}
	next.dirty = true
	return &next
}

// Redo steps forward one snapshot, capped at the last one. The dirty flag is
// set even when the index does not move.
func (h *History) Redo() *History {
	next := *h
	if next.index < len(next.snapshots)-1 {
		next.index++
	}
	next.dirty = true
	return &next
}

// Current returns the snapshot at the current index.
func (h *History) Current() (*Catalog, error) {
	if h.index < 0 || h.index >= len(h.snapshots) {
		return nil, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, h.index, len(h.snapshots))
	}
	return h.snapshots[h.index], nil
}

// MarkSaved clears the dirty flag.
func (h *History) MarkSaved() *History {
	next := *h
	next.dirty = false
	return &next
}

// MarkSavedIf clears the dirty flag only while saved is still the current
// snapshot. A save that raced with later edits leaves the history dirty.
func (h *History) MarkSavedIf(saved *Catalog) *History {
	cur, err := h.Current()
	if err != nil || cur != saved {
		return h
	}
	return h.MarkSaved()
}

func (h *History) CanUndo() bool { return h.index > 0 }
func (h *History) CanRedo() bool { return h.index < len(h.snapshots)-1 }
func (h *History) Len() int      { return len(h.snapshots) }
func (h *History) Index() int    { return h.index }
func (h *History) Dirty() bool   { return h.dirty }
func (h *History) Cap() int      { return h.cap }

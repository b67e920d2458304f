// Package overlay turns element overrides into render appearances and
// tracks what changed between successive states.
package overlay

import (
	"sort"
	"sync"

	"github.com/matthewbaird/mllabeler/internal/types"
)

// TransparentAlpha is the transparency applied to faded elements.
const TransparentAlpha = 0.95

// Appearance is the symbology override of one element.
type Appearance struct {
	ElementID    string          `json:"element_id"`
	RGB          *types.ColorDef `json:"rgb,omitempty"`
	Transparency float64         `json:"transparency,omitempty"`
	Emphasized   bool            `json:"emphasized,omitempty"`
	NonLocatable bool            `json:"non_locatable,omitempty"`
}

func (a Appearance) equal(b Appearance) bool {
	if (a.RGB == nil) != (b.RGB == nil) {
		return false
	}
	if a.RGB != nil && *a.RGB != *b.RGB {
		return false
	}
	return a.ElementID == b.ElementID && a.Transparency == b.Transparency &&
		a.Emphasized == b.Emphasized && a.NonLocatable == b.NonLocatable
}

// AppearanceOf converts an override. Elements drawn with default symbology
// report false.
func AppearanceOf(o types.ElementOverride) (Appearance, bool) {
	if o.Color == nil && !o.IsTransparent && !o.IsEmphasized {
		return Appearance{}, false
	}
	a := Appearance{ElementID: o.ElementID, Emphasized: o.IsEmphasized}
	if o.Color != nil {
		c := *o.Color
		a.RGB = &c
	}
	if o.IsTransparent {
		a.Transparency = TransparentAlpha
		a.NonLocatable = true
	}
	return a, true
}

// Diff is the change between two overlay states. NeverDrawn carries the
// complete hidden set whenever it changed.
type Diff struct {
	Seq               uint64       `json:"seq"`
	Full              bool         `json:"full,omitempty"`
	Set               []Appearance `json:"set,omitempty"`
	Cleared           []string     `json:"cleared,omitempty"`
	NeverDrawnChanged bool         `json:"never_drawn_changed,omitempty"`
	NeverDrawn        []string     `json:"never_drawn,omitempty"`
}

// Empty reports whether applying d changes nothing.
func (d Diff) Empty() bool {
	return !d.Full && len(d.Set) == 0 && len(d.Cleared) == 0 && !d.NeverDrawnChanged
}

// Tracker holds the last overlay state sent to viewers.
type Tracker struct {
	mu          sync.Mutex
	seq         uint64
	appearances map[string]Appearance
	neverDrawn  map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		appearances: make(map[string]Appearance),
		neverDrawn:  make(map[string]struct{}),
	}
}

// Update replaces the tracked state with overrides and returns the diff.
// The sequence number only advances for non-empty diffs.
func (t *Tracker) Update(overrides []types.ElementOverride) Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	var d Diff
	next := make(map[string]Appearance, len(overrides))
	hidden := make(map[string]struct{})
	for _, o := range overrides {
		if !o.IsVisible {
			hidden[o.ElementID] = struct{}{}
		}
		a, ok := AppearanceOf(o)
		if !ok {
			continue
		}
		next[o.ElementID] = a
		if prev, ok := t.appearances[o.ElementID]; !ok || !prev.equal(a) {
			d.Set = append(d.Set, a)
		}
	}
	for id := range t.appearances {
		if _, ok := next[id]; !ok {
			d.Cleared = append(d.Cleared, id)
		}
	}
	sort.Strings(d.Cleared)

	if !sameSet(hidden, t.neverDrawn) {
		d.NeverDrawnChanged = true
		d.NeverDrawn = sortedKeys(hidden)
	}

	t.appearances = next
	t.neverDrawn = hidden
	if !d.Empty() {
		t.seq++
	}
	d.Seq = t.seq
	return d
}

// Snapshot returns the whole tracked state as a full diff, for viewers that
// connect late.
func (t *Tracker) Snapshot() Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := Diff{Seq: t.seq, Full: true, NeverDrawnChanged: true, NeverDrawn: sortedKeys(t.neverDrawn)}
	for _, id := range sortedKeys(t.appearances) {
		d.Set = append(d.Set, t.appearances[id])
	}
	return d
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package similar

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// AuxIndex partitions elements by structurally equal auxiliary data.
type AuxIndex struct {
	forward  map[string]string
	backward map[string]map[string]struct{}
}

// NewAuxIndex canonicalizes every payload so that key order and spacing do
// not affect equality. Empty and null payloads are not indexed.
func NewAuxIndex(data map[string][]byte) (*AuxIndex, error) {
	idx := &AuxIndex{
		forward:  make(map[string]string, len(data)),
		backward: make(map[string]map[string]struct{}),
	}
	for id, raw := range data {
		if len(raw) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("aux data of %s: %w", id, err)
		}
		if v == nil {
			continue
		}
		canon, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("aux data of %s: %w", id, err)
		}
		key := string(canon)
		idx.forward[id] = key
		set, ok := idx.backward[key]
		if !ok {
			set = make(map[string]struct{})
			idx.backward[key] = set
		}
		set[id] = struct{}{}
	}
	return idx, nil
}

// Len is the number of indexed elements.
func (x *AuxIndex) Len() int {
	return len(x.forward)
}

// Filter keeps the ids whose aux data equals that of refID. When refID has
// no aux data the ids are returned unchanged.
func (x *AuxIndex) Filter(refID string, ids []string) []string {
	key, ok := x.forward[refID]
	if !ok {
		return ids
	}
	equal := x.backward[key]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := equal[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

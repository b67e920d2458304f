package workflow

import "github.com/goccy/go-json"

// Selection is an immutable, ordered set of element ids.
type Selection struct {
	ids []string
	set map[string]struct{}
}

// NewSelection dedups ids keeping first occurrence order.
func NewSelection(ids []string) *Selection {
	s := &Selection{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, ok := s.set[id]; ok {
			continue
		}
		s.set[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

func (s *Selection) Has(id string) bool {
	_, ok := s.set[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

// IDs returns the ids in order.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *Selection) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

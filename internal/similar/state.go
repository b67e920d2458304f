package similar

import (
	"fmt"

	"github.com/matthewbaird/mllabeler/internal/elements"
)

// State is the finder state.
type State struct {
	Reference  *elements.Attributes `json:"-"`
	SingleID   string               `json:"single_id,omitempty"`
	Content    ContentMap           `json:"content_map"`
	Searching  bool                 `json:"is_searching"`
	FoundCount *int                 `json:"found_count,omitempty"`
	Token      string               `json:"-"`
	// Accepted is the token of the last result that was recorded.
	Accepted string `json:"-"`
	Config   Config `json:"config"`
}

// InitialState returns an idle finder with cfg.
func InitialState(cfg Config) *State {
	return &State{Content: ContentMap{}, Config: cfg.Clone()}
}

// Action is a finder state transition.
type Action interface {
	ActionType() string
}

// SingleKeyChanged records a new single-element reference.
type SingleKeyChanged struct {
	Attributes elements.Attributes
	Content    ContentMap
}

// ConfigChanged replaces the configuration.
type ConfigChanged struct{ Config Config }

// SearchStarted marks a search identified by Token as running.
type SearchStarted struct{ Token string }

// ElementsFound reports the result of the search identified by Token.
type ElementsFound struct {
	Token string
	Count int
}

// SearchReset drops the found count and invalidates a running search.
type SearchReset struct{}

func (SingleKeyChanged) ActionType() string { return "similar.single_key_changed" }
func (ConfigChanged) ActionType() string    { return "similar.config_changed" }
func (SearchStarted) ActionType() string    { return "similar.search_started" }
func (ElementsFound) ActionType() string    { return "similar.elements_found" }
func (SearchReset) ActionType() string      { return "similar.search_reset" }

// Reduce applies a to prev. A new reference or configuration invalidates the
// running search; results carrying a superseded token leave the state
// unchanged.
func Reduce(prev *State, a Action) (*State, error) {
	next := *prev
	switch a := a.(type) {
	case SingleKeyChanged:
		ref := a.Attributes
		next.Reference = &ref
		next.SingleID = ref.ElementID
		next.Content = a.Content
		next.Searching = false
		next.FoundCount = nil
		next.Token = ""
	case ConfigChanged:
		next.Config = a.Config.Clone()
		next.Searching = false
		next.Token = ""
	case SearchStarted:
		next.Searching = true
		next.Token = a.Token
	case ElementsFound:
		if a.Token != prev.Token {
			return prev, nil
		}
		count := a.Count
		next.Searching = false
		next.FoundCount = &count
		next.Token = ""
		next.Accepted = a.Token
	case SearchReset:
		next.Searching = false
		next.FoundCount = nil
		next.Token = ""
	default:
		return prev, fmt.Errorf("similar: unknown action %T", a)
	}
	return &next, nil
}

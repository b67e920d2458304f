package workflow

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/mllabeler/internal/types"
)

func TestSelectionAndGroupMapEncoding(t *testing.T) {
	payload := struct {
		Selection *Selection `json:"selection"`
		Empty     *Selection `json:"empty"`
		Groups    *GroupMap  `json:"groups"`
	}{
		Selection: NewSelection([]string{"0x2", "0x1"}),
		Empty:     NewSelection(nil),
		Groups: NewGroupMap(
			GroupEntry{ID: "wall", GroupState: types.GroupState{IsDisplayed: true}},
			GroupEntry{ID: "door", GroupState: types.GroupState{DisplayLabel: "Door", IsTransparent: true}},
		),
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"selection": ["0x2", "0x1"],
		"empty": [],
		"groups": [
			{"id": "wall", "is_displayed": true, "is_transparent": false},
			{"id": "door", "display_label": "Door", "is_displayed": false, "is_transparent": true}
		]
	}`, string(data))
}

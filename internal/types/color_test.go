package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#e6beff96")
	require.NoError(t, err)
	assert.Equal(t, RGBT(230, 190, 255, 150), c)

	c, err = ParseColor("404040")
	require.NoError(t, err)
	assert.Equal(t, RGB(64, 64, 64), c)

	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestColorDef_JSON(t *testing.T) {
	b, err := json.Marshal(MLTableItem{Name: "x", Color: RGB(255, 0, 0)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"color":"#ff0000"`)

	var item MLTableItem
	require.NoError(t, json.Unmarshal(b, &item))
	assert.Equal(t, RGB(255, 0, 0), item.Color)
}

func TestParseColorMode(t *testing.T) {
	m, err := ParseColorMode("confusions_with_label")
	require.NoError(t, err)
	assert.True(t, m.IsConfusion())
	assert.False(t, ColorModeLabel.IsConfusion())

	_, err = ParseColorMode("rainbow")
	assert.Error(t, err)
}

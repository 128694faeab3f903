package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guidebot/core/menu"
)

func TestFromMenuKeepsRawPayloads(t *testing.T) {
	kb := [][]menu.Button{
		{{Label: "Housing", Payload: "theme:0a1b2c3d"}},
		{{Label: "🔙 Back", Payload: menu.PayloadBack}},
	}
	markup := FromMenu(kb)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "Housing", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "theme:0a1b2c3d", markup.InlineKeyboard[0][0].Data)
	assert.Empty(t, markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, menu.PayloadBack, markup.InlineKeyboard[1][0].Data)
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.Data), MaxCallbackData)
		}
	}
}

func TestFromMenuEmpty(t *testing.T) {
	assert.Nil(t, FromMenu(nil))
}

func TestInlineButtonsRowsUnique(t *testing.T) {
	markup := InlineButtonsRows([]InlineBtn{{Text: "x", Unique: "nav", Data: "1"}})
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "nav", markup.InlineKeyboard[0][0].Unique)
}

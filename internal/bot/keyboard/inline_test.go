package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pydt-bot/internal/bot/keyboard"
	"github.com/Proton-105/pydt-bot/internal/domain"
)

func TestInline(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		markup, err := keyboard.Inline([][]domain.Button{
			{{Text: "Register", Data: "/register"}, {Text: "Deregister", Data: "/deregister"}},
			{},
			{{Text: "Help", Data: "/help"}},
		})
		require.NoError(t, err)
		require.NotNil(t, markup)

		require.Len(t, markup.InlineKeyboard, 2)
		assert.Len(t, markup.InlineKeyboard[0], 2)
		assert.Equal(t, "/deregister", markup.InlineKeyboard[0][1].Data)
		assert.Empty(t, markup.InlineKeyboard[0][1].Unique)
	})

	t.Run("nothing to render", func(t *testing.T) {
		markup, err := keyboard.Inline(nil)
		require.NoError(t, err)
		assert.Nil(t, markup)
	})

	t.Run("callback data overflow", func(t *testing.T) {
		_, err := keyboard.Inline([][]domain.Button{{
			{Text: "Too big", Data: strings.Repeat("x", keyboard.CallbackDataLimitBytes+1)},
		}})
		assert.Error(t, err)
	})

	t.Run("empty callback data", func(t *testing.T) {
		_, err := keyboard.Inline([][]domain.Button{{{Text: "Nothing"}}})
		assert.Error(t, err)
	})
}

// Package keyboard renders reply buttons as telebot inline markup.
package keyboard

import (
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/domain"
)

// CallbackDataLimitBytes is Telegram's limit on callback data.
const CallbackDataLimitBytes = 64

// Inline builds inline markup from button rows. Empty rows are skipped and
// nil is returned when there is nothing to render.
func Inline(rows [][]domain.Button) (*telebot.ReplyMarkup, error) {
	keyboard := make([][]telebot.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		buttons := make([]telebot.InlineButton, len(row))
		for i, btn := range row {
			if err := validateCallbackData(btn.Data); err != nil {
				return nil, fmt.Errorf("button %q: %w", btn.Text, err)
			}
			// no Unique: the data reaches OnCallback verbatim
			buttons[i] = telebot.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		keyboard = append(keyboard, buttons)
	}

	if len(keyboard) == 0 {
		return nil, nil
	}

	return &telebot.ReplyMarkup{InlineKeyboard: keyboard}, nil
}

func validateCallbackData(data string) error {
	if data == "" {
		return fmt.Errorf("callback data is empty")
	}
	if len(data) > CallbackDataLimitBytes {
		return fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(data))
	}
	return nil
}

package bot

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/domain"
)

// Normalize converts a telebot update into its domain form. It reports
// false for update shapes the bot does not react to.
func Normalize(upd telebot.Update) (domain.Update, bool) {
	switch {
	case upd.Message != nil:
		return fromMessage(upd.ID, domain.UpdateTextMessage, upd.Message)
	case upd.EditedMessage != nil:
		return fromMessage(upd.ID, domain.UpdateEditedTextMessage, upd.EditedMessage)
	case upd.Callback != nil:
		return fromCallback(upd.ID, upd.Callback)
	default:
		return domain.Update{}, false
	}
}

func fromMessage(id int, kind domain.UpdateKind, msg *telebot.Message) (domain.Update, bool) {
	if msg.Sender == nil || msg.Chat == nil {
		return domain.Update{}, false
	}

	return domain.Update{
		ID:       id,
		Kind:     kind,
		SenderID: msg.Sender.ID,
		ChatID:   msg.Chat.ID,
		ChatKind: domain.ChatKind(msg.Chat.Type),
		Text:     msg.Text,
	}, true
}

func fromCallback(id int, cb *telebot.Callback) (domain.Update, bool) {
	if cb.Sender == nil {
		return domain.Update{}, false
	}

	u := domain.Update{
		ID:         id,
		Kind:       domain.UpdateCallbackQuery,
		SenderID:   cb.Sender.ID,
		Text:       strings.TrimSpace(cb.Data),
		CallbackID: cb.ID,
	}

	if cb.Message != nil && cb.Message.Chat != nil {
		u.ChatID = cb.Message.Chat.ID
		u.ChatKind = domain.ChatKind(cb.Message.Chat.Type)
	}

	return u, true
}

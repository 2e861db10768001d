package handlers

import (
	"context"

	"github.com/Proton-105/pydt-bot/internal/domain"
)

const helpText = `What can this bot do?

1. /register - Register to receive notifications and get a token for PYDT webhook
2. /deregister - Deregister your token
3. /help - Show help message
4. /privacy - Show the privacy disclaimer

Once you have registered, you will receive notifications when it is your turn to play.
Only one token can be registered per user.`

const privacyText = `This bot stores your Telegram user id, the id of this chat and your webhook token, and nothing else.
The data is only used to deliver turn notifications from Play Your Damn Turn to this chat.
Use /deregister to revoke your token at any time.`

// HelpReply is the static /help text with shortcut buttons.
func HelpReply() domain.Reply {
	return domain.Reply{
		Text: helpText,
		Buttons: [][]domain.Button{{
			{Text: "Register", Data: "/register"},
			{Text: "Deregister", Data: "/deregister"},
		}},
	}
}

// PrivacyReply is the static /privacy text.
func PrivacyReply() domain.Reply {
	return domain.Reply{Text: privacyText}
}

// NewStaticHandler replies with reply to the originating chat. It touches
// neither the throttle nor storage.
func NewStaticHandler(sender Sender, reply domain.Reply) Handler {
	return func(ctx context.Context, u domain.Update) error {
		if u.ChatID == 0 {
			return nil
		}
		return sender.Send(ctx, u.ChatID, reply)
	}
}

package domain

import "strings"

// UpdateKind tags the shape of an inbound Telegram update.
type UpdateKind int

const (
	UpdateUnknown UpdateKind = iota
	UpdateTextMessage
	UpdateEditedTextMessage
	UpdateCallbackQuery
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTextMessage:
		return "message"
	case UpdateEditedTextMessage:
		return "edited_message"
	case UpdateCallbackQuery:
		return "callback_query"
	default:
		return "unknown"
	}
}

// ChatKind classifies the conversational context of an update.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSuperGroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Update is the normalized form of every inbound update the bot reacts to.
type Update struct {
	ID       int
	Kind     UpdateKind
	SenderID int64
	ChatID   int64
	ChatKind ChatKind
	Text     string
	// CallbackID is set for callback queries so they can be answered.
	CallbackID string
}

// Command returns the leading bot command of the update text without any
// "@botname" suffix, or an empty string when the text is not a command.
func (u Update) Command() string {
	fields := strings.Fields(u.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}

	cmd := fields[0]
	if idx := strings.Index(cmd, "@"); idx != -1 {
		cmd = cmd[:idx]
	}

	return strings.ToLower(cmd)
}

// Args returns the whitespace-separated fields following the command.
func (u Update) Args() []string {
	fields := strings.Fields(u.Text)
	if len(fields) <= 1 || u.Command() == "" {
		return nil
	}

	return fields[1:]
}

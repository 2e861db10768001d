package domain

// ParseMode selects how the messaging platform renders outbound text.
type ParseMode string

const (
	ParseModePlain      ParseMode = ""
	ParseModeMarkdownV2 ParseMode = "MarkdownV2"
)

// Reply is a text destined for a chat.
type Reply struct {
	Text      string
	ParseMode ParseMode
	// Buttons are rendered as inline keyboard rows.
	Buttons [][]Button
}

// Button is an inline keyboard button whose Data is fed back to the bot as
// callback text when pressed.
type Button struct {
	Text string
	Data string
}

package bot

// Command constants for Telegram bot commands.
const (
	CommandHelp       = "/help"
	CommandPrivacy    = "/privacy"
	CommandRegister   = "/register"
	CommandDeregister = "/deregister"
	// CommandStart is what Telegram sends when a user opens the bot.
	CommandStart = "/start"
)

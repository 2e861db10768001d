// Package domain holds the entities shared by the bot, the relay and storage.
package domain

import "time"

// Registration binds a Telegram user to an outbound chat and, while
// registered, to a webhook token. An empty Token means deregistered.
type Registration struct {
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registered reports whether the record currently carries a token.
func (r *Registration) Registered() bool {
	return r != nil && r.Token != ""
}

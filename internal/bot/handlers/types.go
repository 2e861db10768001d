// Package handlers implements the bot's command handlers.
package handlers

import (
	"context"

	"github.com/Proton-105/pydt-bot/internal/domain"
)

// Handler processes one normalized update.
type Handler func(ctx context.Context, u domain.Update) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply domain.Reply) error
}

// Package bot wires Telegram updates to the command handlers.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/pkg/config"
)

// Deps are the collaborators the bot's handlers need.
type Deps struct {
	Registrar   handlers.Registrar
	Throttle    handlers.Throttle
	Middlewares []handlers.Middleware
}

// Bot wraps telebot.Bot with the update dispatcher.
type Bot struct {
	telebot    *telebot.Bot
	updates    http.Handler
	sender     *Sender
	dispatcher *Dispatcher
	log        *slog.Logger
}

// New builds a telegram bot configured according to the application settings.
func New(cfg config.BotConfig, log *slog.Logger, deps Deps) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: cfg.SendTimeout},
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	webhook := cfg.Mode == "webhook"
	if webhook {
		// The poller only registers the webhook with Telegram; Listen stays
		// empty and deliveries are served by WebhookHandler.
		settings.Poller = &telebot.Webhook{
			SecretToken: cfg.Secret,
			Endpoint:    &telebot.WebhookEndpoint{PublicURL: cfg.PublicURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.PollTimeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	sender := NewSender(tb, cfg.SendRatePerSec, cfg.SendTimeout, log)
	b := &Bot{
		telebot:    tb,
		sender:     sender,
		dispatcher: NewDispatcher(log),
		log:        log,
	}

	if webhook {
		b.updates = newWebhookHandler(cfg.Secret, tb, log)
	}

	Setup(b.dispatcher, sender, deps, log)
	b.registerTelebotHandlers()

	return b, nil
}

// Setup registers every command and middleware on d.
func Setup(d *Dispatcher, sender handlers.Sender, deps Deps, log *slog.Logger) {
	for _, mw := range deps.Middlewares {
		d.Use(mw)
	}

	help := handlers.NewStaticHandler(sender, handlers.HelpReply())
	d.RegisterCommand(CommandHelp, help)
	d.RegisterCommand(CommandStart, help)
	d.RegisterCommand(CommandPrivacy, handlers.NewStaticHandler(sender, handlers.PrivacyReply()))
	d.RegisterCommand(CommandRegister, handlers.NewRegisterHandler(deps.Registrar, deps.Throttle, sender, log))
	d.RegisterCommand(CommandDeregister, handlers.NewDeregisterHandler(deps.Registrar, deps.Throttle, sender, log))
}

func (b *Bot) registerTelebotHandlers() {
	route := func(c telebot.Context) error {
		u, ok := Normalize(c.Update())
		if !ok {
			return nil
		}

		if u.CallbackID != "" {
			// the button spinner stops regardless of what the command does
			if err := c.Respond(); err != nil {
				b.log.Warn("failed to answer callback", slog.Any("error", err))
			}
		}

		return b.dispatcher.Dispatch(context.Background(), u)
	}

	b.telebot.Handle(telebot.OnText, route)
	b.telebot.Handle(telebot.OnEdited, route)
	b.telebot.Handle(telebot.OnCallback, route)
}

// Start runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	b.log.Info("telegram bot started")
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Sender returns the outbound sender shared with the webhook relay.
func (b *Bot) Sender() *Sender {
	return b.sender
}

// WebhookHandler returns the handler receiving Telegram updates in webhook
// mode, or nil when the bot polls.
func (b *Bot) WebhookHandler() http.Handler {
	if b.updates == nil {
		return nil
	}
	return b.updates
}

// Ping checks the bot token against the Telegram API.
func (b *Bot) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := b.telebot.Raw("getMe", nil)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

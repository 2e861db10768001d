// Package registration issues webhook tokens and binds them to chats.
package registration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/internal/storage"
)

const maxTokenAttempts = 3

const (
	profileURL = "https://www.playyourdamnturn.com/user/profile"

	deregisteredText = "You have been deregistered. You will no longer receive turn notifications.\n" +
		"Use the /register command to get a new webhook URL."
	retryText = "Sorry, your registration could not be saved right now. Please try again in a few minutes."
)

// Options configures a Service.
type Options struct {
	// URLTemplate is concatenated with the token to form the webhook URL.
	URLTemplate string
	// StrictPersist replaces the success text with a retry hint when the
	// record could not be saved.
	StrictPersist bool
}

// Service provides registration operations over a TokenStore.
type Service struct {
	store    storage.TokenStore
	opts     Options
	log      *slog.Logger
	newToken func() (string, error)
}

// NewService constructs a new Service instance.
func NewService(store storage.TokenStore, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:    store,
		opts:     opts,
		log:      log.With(slog.String("component", "registration")),
		newToken: GenerateToken,
	}
}

// Session is the registration context of one inbound command: the caller,
// the chat it came from and whatever was stored for the caller before.
type Session struct {
	svc *Service
	reg domain.Registration
}

// Begin loads the caller's record and binds it to chatID. A missing record
// starts a fresh one; a load failure is logged and also starts fresh.
func (s *Service) Begin(ctx context.Context, userID, chatID int64) *Session {
	sess := &Session{svc: s, reg: domain.Registration{UserID: userID}}

	stored, err := s.store.Get(ctx, userID)
	switch {
	case err == nil:
		sess.reg = *stored
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		s.logError("load", userID, err)
	}

	if chatID != 0 {
		sess.reg.ChatID = chatID
	}

	return sess
}

// Registration returns a copy of the session's current record.
func (sess *Session) Registration() domain.Registration {
	return sess.reg
}

// Register issues a token for the caller (reusing an existing one), stores
// it and returns the webhook instructions.
func (sess *Session) Register(ctx context.Context) domain.Reply {
	s := sess.svc

	if sess.reg.Token == "" {
		token, err := s.issueToken(ctx)
		if err != nil {
			s.logError("issue_token", sess.reg.UserID, err)
			return domain.Reply{Text: EscapeMarkdownV2(retryText), ParseMode: domain.ParseModeMarkdownV2}
		}
		sess.reg.Token = token
	}

	if reply, ok := sess.save(ctx, "register"); !ok {
		return reply
	}

	return domain.Reply{
		Text:      registeredText(s.opts.URLTemplate + sess.reg.Token),
		ParseMode: domain.ParseModeMarkdownV2,
	}
}

// Deregister clears the caller's token and keeps the chat binding.
func (sess *Session) Deregister(ctx context.Context) domain.Reply {
	sess.reg.Token = ""

	if reply, ok := sess.save(ctx, "deregister"); !ok {
		return reply
	}

	return domain.Reply{Text: EscapeMarkdownV2(deregisteredText), ParseMode: domain.ParseModeMarkdownV2}
}

func (sess *Session) save(ctx context.Context, op string) (domain.Reply, bool) {
	s := sess.svc
	reg := sess.reg

	err := s.store.Put(ctx, &reg)
	if err == nil {
		s.log.Info("registration saved",
			slog.String("operation", op),
			slog.Int64("user_id", reg.UserID),
			slog.Int64("chat_id", reg.ChatID),
			slog.Bool("registered", reg.Registered()),
		)
		return domain.Reply{}, true
	}

	s.logError(op, reg.UserID, err)
	if s.opts.StrictPersist {
		return domain.Reply{Text: EscapeMarkdownV2(retryText), ParseMode: domain.ParseModeMarkdownV2}, false
	}

	return domain.Reply{}, true
}

// Register is Begin followed by Session.Register.
func (s *Service) Register(ctx context.Context, userID, chatID int64) domain.Reply {
	return s.Begin(ctx, userID, chatID).Register(ctx)
}

// Deregister is Begin followed by Session.Deregister.
func (s *Service) Deregister(ctx context.Context, userID, chatID int64) domain.Reply {
	return s.Begin(ctx, userID, chatID).Deregister(ctx)
}

// ResolveChat returns the chat bound to token.
func (s *Service) ResolveChat(ctx context.Context, token string) (int64, error) {
	return s.store.FindByToken(ctx, token)
}

// issueToken draws tokens until one is unused. An unreachable store does
// not block issuance; the draw is accepted as is.
func (s *Service) issueToken(ctx context.Context) (string, error) {
	var token string
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		var err error
		token, err = s.newToken()
		if err != nil {
			return "", err
		}

		_, err = s.store.FindByToken(ctx, token)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return token, nil
		case errors.Is(err, apperrors.ErrStorageUnavailable):
			s.logError("token_collision_check", 0, err)
			return token, nil
		}

		s.log.Warn("generated token already in use, drawing again", slog.Int("attempt", attempt+1))
	}

	return token, nil
}

func registeredText(webhookURL string) string {
	return EscapeMarkdownV2("You have been registered in the bot.\n"+
		"In order to receive notifications, go to \""+profileURL+"\" and paste the following url in the \"Webhook Notifications\" field:\n") +
		"```\n" + EscapeMarkdownV2Code(webhookURL) + "\n```\n" +
		EscapeMarkdownV2("Remember to click submit to save the changes.\n"+
			"To stop receiving notifications, use the /deregister command.")
}

func (s *Service) logError(operation string, userID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("registration operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}

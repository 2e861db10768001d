package handlers

import (
	"context"
	"log/slog"

	"github.com/Proton-105/pydt-bot/internal/domain"
	"github.com/Proton-105/pydt-bot/internal/registration"
)

// Throttle gates throttled commands.
type Throttle interface {
	Allow(ctx context.Context, callerID int64, kind domain.ChatKind) error
}

// Registrar starts a registration session for a caller.
type Registrar interface {
	Begin(ctx context.Context, userID, chatID int64) *registration.Session
}

// NewRegisterHandler handles /register.
func NewRegisterHandler(svc Registrar, throttle Throttle, sender Sender, log *slog.Logger) Handler {
	return newSessionHandler(svc, throttle, sender, log, (*registration.Session).Register)
}

// NewDeregisterHandler handles /deregister.
func NewDeregisterHandler(svc Registrar, throttle Throttle, sender Sender, log *slog.Logger) Handler {
	return newSessionHandler(svc, throttle, sender, log, (*registration.Session).Deregister)
}

// newSessionHandler builds the registration context, passes the throttle and
// runs op. A throttle denial is returned as is; the error middleware keeps
// it away from the caller.
func newSessionHandler(
	svc Registrar,
	throttle Throttle,
	sender Sender,
	log *slog.Logger,
	op func(*registration.Session, context.Context) domain.Reply,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx context.Context, u domain.Update) error {
		if u.SenderID == 0 {
			log.Warn("registration command without sender", slog.Int("update_id", u.ID))
			return nil
		}

		sess := svc.Begin(ctx, u.SenderID, u.ChatID)

		if err := throttle.Allow(ctx, u.SenderID, u.ChatKind); err != nil {
			return err
		}

		reply := op(sess, ctx)
		return sender.Send(ctx, sess.Registration().ChatID, reply)
	}
}

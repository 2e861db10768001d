// Package relay turns PYDT turn callbacks into Telegram messages.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/pkg/metrics"
)

// Relay outcomes reported to metrics.
const (
	OutcomeSent         = "sent"
	OutcomeUnknownToken = "unknown_token"
	OutcomeAmbiguous    = "ambiguous_token"
	OutcomeStorageDown  = "storage_unavailable"
	OutcomeMalformed    = "malformed"
	OutcomeSendFailed   = "send_failed"
)

// ChatResolver maps a webhook token to its chat.
type ChatResolver interface {
	ResolveChat(ctx context.Context, token string) (int64, error)
}

// Sender delivers a reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply domain.Reply) error
}

// Relay handles PYDT webhook calls.
type Relay struct {
	resolver   ChatResolver
	sender     Sender
	errHandler *apperrors.Handler
	validate   *validator.Validate
	log        *slog.Logger
}

// New constructs a Relay.
func New(resolver ChatResolver, sender Sender, errHandler *apperrors.Handler, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}

	return &Relay{
		resolver:   resolver,
		sender:     sender,
		errHandler: errHandler,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        log.With(slog.String("component", "relay")),
	}
}

// Handle relays one callback. Only a missing token or a missing or malformed
// body are reported back as ErrMalformedPayload; every resolution or
// delivery problem is logged and swallowed.
func (r *Relay) Handle(ctx context.Context, token string, body []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.RecordRelay(OutcomeMalformed)
		return r.report(ctx, apperrors.NewMalformedPayloadError("missing token"))
	}

	// checked before resolution so the response never reveals whether the
	// token is registered
	if len(bytes.TrimSpace(body)) == 0 {
		metrics.RecordRelay(OutcomeMalformed)
		return r.report(ctx, apperrors.NewMalformedPayloadError("missing body"))
	}

	chatID, err := r.resolver.ResolveChat(ctx, token)
	if err != nil {
		metrics.RecordRelay(resolveOutcome(err))
		r.report(ctx, err)
		return nil
	}

	notification, err := r.decode(body)
	if err != nil {
		metrics.RecordRelay(OutcomeMalformed)
		return r.report(ctx, err)
	}

	reply := domain.Reply{Text: Message(notification)}
	if err := r.sender.Send(ctx, chatID, reply); err != nil {
		metrics.RecordRelay(OutcomeSendFailed)
		r.report(ctx, err)
		return nil
	}

	metrics.RecordRelay(OutcomeSent)
	r.log.InfoContext(ctx, "turn notification sent",
		slog.Int64("chat_id", chatID),
		slog.String("game", notification.GameName),
		slog.Int("round", *notification.Round),
	)
	return nil
}

func (r *Relay) decode(body []byte) (*domain.TurnNotification, error) {
	var n domain.TurnNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, apperrors.NewMalformedPayloadError(fmt.Sprintf("invalid json: %v", err))
	}

	if err := r.validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, jsonName(fe.Field()))
			}
			return nil, apperrors.NewMalformedPayloadError("missing " + strings.Join(fields, ", "))
		}
		return nil, apperrors.NewMalformedPayloadError(err.Error())
	}

	return &n, nil
}

func (r *Relay) report(ctx context.Context, err error) error {
	if r.errHandler != nil {
		r.errHandler.Handle(ctx, err)
	} else {
		r.log.WarnContext(ctx, "relay dropped callback", slog.Any("error", err))
	}
	return err
}

// Message renders the notification text.
func Message(n *domain.TurnNotification) string {
	round := ""
	if n.Round != nil {
		round = strconv.Itoa(*n.Round)
	}

	return fmt.Sprintf("Dear %s, it's your damn turn to play in the game %s!\n(round %s)",
		n.UserName, n.GameName, round)
}

func resolveOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return OutcomeUnknownToken
	case errors.Is(err, apperrors.ErrAmbiguousTokenMapping):
		return OutcomeAmbiguous
	default:
		return OutcomeStorageDown
	}
}

func jsonName(field string) string {
	switch field {
	case "UserName":
		return "userName"
	case "GameName":
		return "gameName"
	case "Round":
		return "round"
	default:
		return field
	}
}

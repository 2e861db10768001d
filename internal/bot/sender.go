package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/bot/keyboard"
	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/pkg/metrics"
)

// messenger is the part of *telebot.Bot used for outbound sends.
type messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Sender delivers replies through the Telegram API. Sends are paced by a
// token bucket and bounded by a timeout; a cancelled context abandons the
// in-flight send.
type Sender struct {
	api     messenger
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

var _ handlers.Sender = (*Sender)(nil)

// NewSender builds a Sender allowing ratePerSec sends per second.
func NewSender(api messenger, ratePerSec int, timeout time.Duration, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	return &Sender{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		timeout: timeout,
		log:     log.With(slog.String("component", "sender")),
	}
}

// Send delivers reply to chatID. Telegram flood control is reported as an
// ErrRateLimited error, any other failure as ErrExternalAPI.
func (s *Sender) Send(ctx context.Context, chatID int64, reply domain.Reply) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		metrics.RecordSend("cancelled")
		return apperrors.NewExternalAPIError("telegram.send", fmt.Errorf("wait for send slot: %w", err))
	}

	opts := &telebot.SendOptions{
		ParseMode:             telebot.ParseMode(reply.ParseMode),
		DisableWebPagePreview: true,
	}
	markup, err := keyboard.Inline(reply.Buttons)
	if err != nil {
		return apperrors.NewExternalAPIError("telegram.send", err)
	}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.api.Send(&telebot.Chat{ID: chatID}, reply.Text, opts)
		done <- err
	}()

	select {
	case <-ctx.Done():
		metrics.RecordSend("cancelled")
		s.log.Warn("send abandoned", slog.Int64("chat_id", chatID), slog.Any("error", ctx.Err()))
		return apperrors.NewExternalAPIError("telegram.send", ctx.Err())
	case err := <-done:
		return s.result(chatID, err)
	}
}

func (s *Sender) result(chatID int64, err error) error {
	if err == nil {
		metrics.RecordSend("ok")
		return nil
	}

	if retryAfter, ok := floodRetryAfter(err); ok {
		metrics.RecordSend("flood")
		s.log.Warn("telegram flood control, dropping send",
			slog.Int64("chat_id", chatID),
			slog.Int("retry_after", retryAfter),
		)
		return apperrors.NewRateLimitError(retryAfter)
	}

	metrics.RecordSend("error")
	return apperrors.NewExternalAPIError("telegram.send", err)
}

func floodRetryAfter(err error) (int, bool) {
	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return flood.RetryAfter, true
	}

	var floodPtr *telebot.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return floodPtr.RetryAfter, true
	}

	return 0, false
}

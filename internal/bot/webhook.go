package bot

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	telebot "gopkg.in/telebot.v3"
)

// HeaderWebhookSecret carries the secret_token set with setWebhook.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

// updateProcessor is the subset of telebot.Bot the webhook endpoint needs.
type updateProcessor interface {
	ProcessUpdate(u telebot.Update)
}

// webhookHandler feeds Telegram webhook deliveries straight into the bot's
// handlers. It does not depend on the poller, so updates Telegram delivers
// before Start (or after a failed setWebhook) are still processed.
type webhookHandler struct {
	secret string
	bot    updateProcessor
	log    *slog.Logger
}

func newWebhookHandler(secret string, bot updateProcessor, log *slog.Logger) *webhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &webhookHandler{secret: secret, bot: bot, log: log}
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" {
		got := r.Header.Get(HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.WarnContext(r.Context(), "rejected telegram webhook with bad secret")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var upd telebot.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.log.WarnContext(r.Context(), "undecodable telegram update", slog.Any("error", err))
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}

	h.bot.ProcessUpdate(upd)
	w.WriteHeader(http.StatusOK)
}

package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
)

type webhookHandler struct {
	relay WebhookRelay
	log   *slog.Logger
}

// handle accepts the token as a path segment or as the "token" query
// parameter. Anything the relay absorbs is acknowledged with 200 so PYDT
// does not retry it.
func (h *webhookHandler) handle(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		token = c.Query("token")
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	err = h.relay.Handle(c.Request.Context(), token, body)
	switch {
	case err == nil:
		c.String(http.StatusOK, "ok")
	case errors.Is(err, apperrors.ErrMalformedPayload):
		c.String(http.StatusBadRequest, malformedMessage(err))
	default:
		h.log.ErrorContext(c.Request.Context(), "webhook failed", slog.Any("error", err))
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "internal error")
	}
}

func malformedMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
)

const helpUpdateJSON = `{"update_id":11,"message":{"message_id":5,"from":{"id":7},"chat":{"id":42,"type":"private"},"text":"/help"}}`

type recordingProcessor struct {
	mu      sync.Mutex
	updates []telebot.Update
}

func (p *recordingProcessor) ProcessUpdate(u telebot.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

func postUpdate(h http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(HeaderWebhookSecret, secret)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// A bot that was never started must still answer deliveries promptly.
func TestWebhookHandler_ProcessesUpdatesBeforeStart(t *testing.T) {
	tb, err := telebot.NewBot(telebot.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)

	env := newTestEnv(t, 5)
	b := &Bot{telebot: tb, dispatcher: env.dispatcher, log: testLogger()}
	b.registerTelebotHandlers()

	h := newWebhookHandler("s3cret", tb, testLogger())

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- postUpdate(h, "s3cret", helpUpdateJSON) }()

	select {
	case w := <-done:
		assert.Equal(t, http.StatusOK, w.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery blocked before the bot was started")
	}

	msgs := env.sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].chatID)
	assert.Equal(t, handlers.HelpReply().Text, msgs[0].reply.Text)
}

func TestWebhookHandler_RejectsRequests(t *testing.T) {
	proc := &recordingProcessor{}
	h := newWebhookHandler("s3cret", proc, testLogger())

	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, "wrong", helpUpdateJSON).Code)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, "", helpUpdateJSON).Code)
	assert.Equal(t, http.StatusBadRequest, postUpdate(h, "s3cret", "{").Code)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/telegram", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	assert.Equal(t, 0, proc.count())

	assert.Equal(t, http.StatusOK, postUpdate(h, "s3cret", helpUpdateJSON).Code)
	require.Equal(t, 1, proc.count())
	assert.Equal(t, 11, proc.updates[0].ID)
	assert.Equal(t, "/help", proc.updates[0].Message.Text)
}

func TestWebhookHandler_NoSecretConfigured(t *testing.T) {
	proc := &recordingProcessor{}
	h := newWebhookHandler("", proc, testLogger())

	assert.Equal(t, http.StatusOK, postUpdate(h, "", helpUpdateJSON).Code)
	assert.Equal(t, 1, proc.count())
}

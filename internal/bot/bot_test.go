package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/internal/ratelimit"
	"github.com/Proton-105/pydt-bot/internal/registration"
	"github.com/Proton-105/pydt-bot/internal/storage"
	"github.com/Proton-105/pydt-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	chatID int64
	reply  domain.Reply
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, chatID int64, reply domain.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, reply: reply})
	return f.err
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type testEnv struct {
	dispatcher *Dispatcher
	sender     *fakeSender
	store      *storage.MemoryStore
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()

	log := testLogger()
	store := storage.NewMemoryStore()
	rules, err := ratelimit.NewRules(config.RateLimitConfig{
		PerUser: config.RateLimitRule{Limit: limit, Window: "1m"},
	})
	require.NoError(t, err)

	env := &testEnv{
		dispatcher: NewDispatcher(log),
		sender:     &fakeSender{},
		store:      store,
	}

	Setup(env.dispatcher, env.sender, Deps{
		Registrar: registration.NewService(store, registration.Options{URLTemplate: "https://relay.example.com/webhook?token="}, log),
		Throttle:  ratelimit.NewGuard(ratelimit.NewMemoryLimiter(), rules, log),
		Middlewares: []handlers.Middleware{
			RecoveryMiddleware(log),
			ErrorHandlingMiddleware(apperrors.NewHandler(log, false), log),
			LoggingMiddleware(log),
		},
	}, log)

	return env
}

func privateUpdate(text string) domain.Update {
	return domain.Update{
		ID:       1,
		Kind:     domain.UpdateTextMessage,
		SenderID: 7,
		ChatID:   42,
		ChatKind: domain.ChatPrivate,
		Text:     text,
	}
}

func TestDispatch_RegisterSendsWebhookURL(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/register")))

	reg, err := env.store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, reg.Registered())

	sent := env.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].chatID)
	assert.Equal(t, domain.ParseModeMarkdownV2, sent[0].reply.ParseMode)
	assert.Contains(t, sent[0].reply.Text, reg.Token)
}

func TestDispatch_ThrottleDenialIsSilent(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/register")))
	require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/deregister")))

	assert.Len(t, env.sender.messages(), 1)

	reg, err := env.store.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, reg.Registered(), "denied deregister must not run")
}

func TestDispatch_GroupChatIsIgnored(t *testing.T) {
	env := newTestEnv(t, 5)
	u := privateUpdate("/register")
	u.ChatKind = domain.ChatGroup

	require.NoError(t, env.dispatcher.Dispatch(context.Background(), u))

	assert.Empty(t, env.sender.messages())
	_, err := env.store.Get(context.Background(), 7)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDispatch_StaticCommandsBypassThrottle(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/help")))
	}
	require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/privacy@pydt_bot")))

	sent := env.sender.messages()
	require.Len(t, sent, 4)
	assert.NotEmpty(t, sent[0].reply.Buttons)
	assert.Equal(t, "/register", sent[0].reply.Buttons[0][0].Data)
	assert.Contains(t, sent[3].reply.Text, "webhook token")

	// the throttle window is still free
	require.NoError(t, env.dispatcher.Dispatch(ctx, privateUpdate("/register")))
	assert.Len(t, env.sender.messages(), 5)
}

func TestDispatch_CallbackButtonRunsCommand(t *testing.T) {
	env := newTestEnv(t, 5)
	u := privateUpdate("/deregister")
	u.Kind = domain.UpdateCallbackQuery
	u.CallbackID = "cb-1"

	require.NoError(t, env.dispatcher.Dispatch(context.Background(), u))

	sent := env.sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].reply.Text, "deregistered")
}

func TestDispatch_IgnoresPlainText(t *testing.T) {
	env := newTestEnv(t, 5)

	require.NoError(t, env.dispatcher.Dispatch(context.Background(), privateUpdate("hello there")))
	require.NoError(t, env.dispatcher.Dispatch(context.Background(), privateUpdate("/unknown")))
	assert.Empty(t, env.sender.messages())
}

func TestDispatch_SendFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t, 5)
	env.sender.err = apperrors.NewExternalAPIError("telegram.send", errors.New("boom"))

	assert.NoError(t, env.dispatcher.Dispatch(context.Background(), privateUpdate("/help")))
}

func TestRecoveryMiddleware(t *testing.T) {
	mw := RecoveryMiddleware(testLogger())
	h := mw(func(context.Context, domain.Update) error { panic("kaboom") })

	err := h(context.Background(), domain.Update{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestNormalize(t *testing.T) {
	sender := &telebot.User{ID: 7}
	chat := &telebot.Chat{ID: 42, Type: telebot.ChatPrivate}

	t.Run("message", func(t *testing.T) {
		u, ok := Normalize(telebot.Update{ID: 3, Message: &telebot.Message{Sender: sender, Chat: chat, Text: "/help"}})
		require.True(t, ok)
		assert.Equal(t, domain.UpdateTextMessage, u.Kind)
		assert.Equal(t, int64(7), u.SenderID)
		assert.Equal(t, int64(42), u.ChatID)
		assert.Equal(t, domain.ChatPrivate, u.ChatKind)
		assert.Equal(t, "/help", u.Text)
	})

	t.Run("edited message", func(t *testing.T) {
		u, ok := Normalize(telebot.Update{EditedMessage: &telebot.Message{Sender: sender, Chat: chat, Text: "/register"}})
		require.True(t, ok)
		assert.Equal(t, domain.UpdateEditedTextMessage, u.Kind)
	})

	t.Run("callback", func(t *testing.T) {
		u, ok := Normalize(telebot.Update{Callback: &telebot.Callback{
			ID:      "cb",
			Sender:  sender,
			Data:    " /register ",
			Message: &telebot.Message{Chat: &telebot.Chat{ID: 42, Type: telebot.ChatGroup}},
		}})
		require.True(t, ok)
		assert.Equal(t, domain.UpdateCallbackQuery, u.Kind)
		assert.Equal(t, "/register", u.Text)
		assert.Equal(t, "cb", u.CallbackID)
		assert.Equal(t, domain.ChatGroup, u.ChatKind)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, ok := Normalize(telebot.Update{})
		assert.False(t, ok)

		_, ok = Normalize(telebot.Update{Message: &telebot.Message{Chat: chat}})
		assert.False(t, ok)
	})
}

type fakeMessenger struct {
	err   error
	delay time.Duration
	calls int
	mu    sync.Mutex
	opts  []interface{}
}

func (f *fakeMessenger) Send(_ telebot.Recipient, _ interface{}, opts ...interface{}) (*telebot.Message, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = opts
	return &telebot.Message{}, f.err
}

func TestSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("ok with markup", func(t *testing.T) {
		api := &fakeMessenger{}
		s := NewSender(api, 10, time.Second, testLogger())

		require.NoError(t, s.Send(ctx, 42, domain.Reply{
			Text:      "hi",
			ParseMode: domain.ParseModeMarkdownV2,
			Buttons:   [][]domain.Button{{{Text: "Register", Data: "/register"}}},
		}))

		require.Len(t, api.opts, 1)
		opts, ok := api.opts[0].(*telebot.SendOptions)
		require.True(t, ok)
		assert.Equal(t, telebot.ModeMarkdownV2, opts.ParseMode)
		require.NotNil(t, opts.ReplyMarkup)
	})

	t.Run("flood control", func(t *testing.T) {
		s := NewSender(&fakeMessenger{err: telebot.FloodError{RetryAfter: 12}}, 10, time.Second, testLogger())

		err := s.Send(ctx, 42, domain.Reply{Text: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	})

	t.Run("api error", func(t *testing.T) {
		s := NewSender(&fakeMessenger{err: errors.New("bad request")}, 10, time.Second, testLogger())

		err := s.Send(ctx, 42, domain.Reply{Text: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrExternalAPI)
	})

	t.Run("timeout abandons send", func(t *testing.T) {
		s := NewSender(&fakeMessenger{delay: 200 * time.Millisecond}, 10, 20*time.Millisecond, testLogger())

		err := s.Send(ctx, 42, domain.Reply{Text: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrExternalAPI)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

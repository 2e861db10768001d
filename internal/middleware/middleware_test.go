package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pydt-bot/internal/domain"
	"github.com/Proton-105/pydt-bot/internal/idempotency"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) (*miniredis.Miniredis, *idempotency.Manager) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, idempotency.NewManager(idempotency.NewRedisStore(client), testLogger())
}

func TestIdempotency_SkipsRedeliveredUpdate(t *testing.T) {
	_, manager := setupManager(t)

	calls := 0
	h := Idempotency(manager, time.Hour, testLogger())(func(context.Context, domain.Update) error {
		calls++
		return nil
	})

	u := domain.Update{ID: 10, Text: "/register"}
	require.NoError(t, h(context.Background(), u))
	require.NoError(t, h(context.Background(), u))
	require.NoError(t, h(context.Background(), domain.Update{ID: 11, Text: "/register"}))

	assert.Equal(t, 2, calls)
}

func TestIdempotency_FailedHandlerCanRerun(t *testing.T) {
	_, manager := setupManager(t)

	calls := 0
	h := Idempotency(manager, time.Hour, testLogger())(func(context.Context, domain.Update) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})

	u := domain.Update{ID: 10}
	assert.Error(t, h(context.Background(), u))
	assert.NoError(t, h(context.Background(), u))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_StoreDownRunsHandler(t *testing.T) {
	mr, manager := setupManager(t)
	mr.Close()

	calls := 0
	h := Idempotency(manager, time.Hour, testLogger())(func(context.Context, domain.Update) error {
		calls++
		return nil
	})

	require.NoError(t, h(context.Background(), domain.Update{ID: 10}))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_NilManagerAndKeylessUpdates(t *testing.T) {
	calls := 0
	next := func(context.Context, domain.Update) error {
		calls++
		return nil
	}

	h := Idempotency(nil, time.Hour, nil)(next)
	require.NoError(t, h(context.Background(), domain.Update{ID: 1}))
	require.NoError(t, h(context.Background(), domain.Update{ID: 1}))
	assert.Equal(t, 2, calls)

	assert.Equal(t, "", updateKey(domain.Update{}))
	assert.Equal(t, "callback:cb", updateKey(domain.Update{CallbackID: "cb"}))
}

func TestMetrics_PassesErrorThrough(t *testing.T) {
	want := errors.New("boom")
	h := Metrics(func(context.Context, domain.Update) error { return want })

	assert.ErrorIs(t, h(context.Background(), domain.Update{Text: "/help"}), want)
}

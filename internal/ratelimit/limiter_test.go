package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/pkg/config"
)

func newMemoryLimiter(clock *fakeClock) *MemoryLimiter {
	l := NewMemoryLimiter()
	l.now = clock.Now
	return l
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "u", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		clock.Advance(10 * time.Second)
	}

	result, err := limiter.Check(ctx, "u", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// the first grant at t=0 leaves the window at t=60s
	clock.Advance(30*time.Second + time.Millisecond)
	result, err = limiter.Check(ctx, "u", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newMemoryLimiter(newFakeClock())
	ctx := context.Background()

	a, _ := limiter.Check(ctx, "a", 1, time.Minute)
	b, _ := limiter.Check(ctx, "b", 1, time.Minute)
	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(clock)
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "old", 1, time.Minute)
	clock.Advance(2 * time.Minute)
	_, _ = limiter.Check(ctx, "fresh", 1, time.Minute)

	assert.Equal(t, 1, limiter.Cleanup(time.Minute))
	assert.Len(t, limiter.buckets, 1)
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 30, (&Result{ResetAt: now.Add(30 * time.Second)}).RetryAfter(now))
	assert.Equal(t, 1, (&Result{ResetAt: now.Add(-time.Second)}).RetryAfter(now))
	assert.Equal(t, 1, (*Result)(nil).RetryAfter(now))
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	args := m.Called(ctx, key, limit, window)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func TestAdaptiveLimiter_FallsBackWithHalvedLimit(t *testing.T) {
	primary := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 4, time.Minute).Return(nil, errors.New("redis down"))

	fallback := newMemoryLimiter(newFakeClock())
	limiter := NewAdaptiveLimiter(primary, fallback, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "k", 4, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed)
	}
	primary.AssertNumberOfCalls(t, "Check", 3)
}

func TestAdaptiveLimiter_UsesPrimary(t *testing.T) {
	primary := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 4, time.Minute).Return(&Result{Allowed: true, Remaining: 3}, nil)

	limiter := NewAdaptiveLimiter(primary, NewMemoryLimiter(), testLogger())
	result, err := limiter.Check(context.Background(), "k", 4, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Remaining)
}

func newTestGuard(t *testing.T, cfg config.RateLimitConfig, limiter Limiter) *Guard {
	t.Helper()

	rules, err := NewRules(cfg)
	require.NoError(t, err)
	return NewGuard(limiter, rules, testLogger())
}

func TestGuard_Allow(t *testing.T) {
	cfg := config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 1, Window: "1m"}}
	clock := newFakeClock()
	guard := newTestGuard(t, cfg, newMemoryLimiter(clock))
	guard.now = clock.Now
	ctx := context.Background()

	require.NoError(t, guard.Allow(ctx, 7, domain.ChatPrivate))

	err := guard.Allow(ctx, 7, domain.ChatPrivate)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Contains(t, err.Error(), "retry after 60 seconds")

	// other callers keep their own window
	assert.NoError(t, guard.Allow(ctx, 8, domain.ChatPrivate))

	clock.Advance(time.Minute + time.Millisecond)
	assert.NoError(t, guard.Allow(ctx, 7, domain.ChatPrivate))
}

func TestGuard_EligibilityDoesNotConsumeSlot(t *testing.T) {
	cfg := config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 1, Window: "1m"}}
	guard := newTestGuard(t, cfg, newMemoryLimiter(newFakeClock()))
	ctx := context.Background()

	for _, kind := range []domain.ChatKind{domain.ChatGroup, domain.ChatSuperGroup, domain.ChatChannel} {
		err := guard.Allow(ctx, 7, kind)
		assert.ErrorIs(t, err, apperrors.ErrEligibilityDenied)
		assert.True(t, apperrors.IsAbsorbed(err))
	}

	assert.NoError(t, guard.Allow(ctx, 7, domain.ChatPrivate))
}

func TestGuard_WhitelistBypassesWindowNotEligibility(t *testing.T) {
	cfg := config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 1, Window: "1m"},
		Whitelist: []int64{99},
	}
	guard := newTestGuard(t, cfg, newMemoryLimiter(newFakeClock()))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.NoError(t, guard.Allow(ctx, 99, domain.ChatPrivate))
	}
	assert.ErrorIs(t, guard.Allow(ctx, 99, domain.ChatGroup), apperrors.ErrEligibilityDenied)
}

func TestGuard_FailsOpenOnBackendError(t *testing.T) {
	limiter := &mockLimiter{}
	limiter.On("Check", mock.Anything, "user:7", 1, time.Minute).Return(nil, errors.New("boom"))

	cfg := config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 1, Window: "1m"}}
	guard := newTestGuard(t, cfg, limiter)

	assert.NoError(t, guard.Allow(context.Background(), 7, domain.ChatPrivate))
}

func TestRules_Update(t *testing.T) {
	rules, err := NewRules(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 5, Window: "1m"}})
	require.NoError(t, err)

	require.NoError(t, rules.Update(config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 2, Window: "30s"},
		Whitelist: []int64{1},
	}))
	limit, window := rules.PerUser()
	assert.Equal(t, 2, limit)
	assert.Equal(t, 30*time.Second, window)
	assert.True(t, rules.IsWhitelisted(1))

	err = rules.Update(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 3, Window: "soon"}})
	assert.Error(t, err)
	limit, _ = rules.PerUser()
	assert.Equal(t, 2, limit)
}

func TestCleaner_RemovesIdleState(t *testing.T) {
	mr, client := setupTestRedis(t)
	clock := newFakeClock()

	redisLimiter := NewRedisLimiter(client, testLogger())
	redisLimiter.now = clock.Now
	memory := newMemoryLimiter(clock)
	ctx := context.Background()

	_, err := redisLimiter.Check(ctx, "idle", 5, time.Minute)
	require.NoError(t, err)
	_, err = memory.Check(ctx, "idle", 5, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = redisLimiter.Check(ctx, "active", 5, time.Minute)
	require.NoError(t, err)

	cleaner := NewCleaner(client, memory, testLogger())
	cleaner.now = clock.Now

	assert.Equal(t, 2, cleaner.Cleanup(ctx, time.Minute))
	assert.False(t, mr.Exists(redisKeyPrefix+"idle"))
	assert.True(t, mr.Exists(redisKeyPrefix+"active"))
}

func TestCleaner_KeepsRecentCallsOfMixedKey(t *testing.T) {
	mr, client := setupTestRedis(t)
	clock := newFakeClock()

	limiter := NewRedisLimiter(client, testLogger())
	limiter.now = clock.Now
	ctx := context.Background()

	_, err := limiter.Check(ctx, "mixed", 2, time.Minute)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	_, err = limiter.Check(ctx, "mixed", 2, time.Minute)
	require.NoError(t, err)
	clock.Advance(40 * time.Second)

	cleaner := NewCleaner(client, nil, testLogger())
	cleaner.now = clock.Now

	assert.Equal(t, 0, cleaner.Cleanup(ctx, time.Minute))
	require.True(t, mr.Exists(redisKeyPrefix+"mixed"))

	members, err := mr.ZMembers(redisKeyPrefix + "mixed")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	// the surviving recent call still counts against the window
	result, err := limiter.Check(ctx, "mixed", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

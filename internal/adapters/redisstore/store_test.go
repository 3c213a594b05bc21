package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis emulates the commands and scripts the store issues.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
	// beforeEval runs before each script, without the mutex held.
	beforeEval func()
	evals      int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = asString(value)
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if f.beforeEval != nil {
		f.beforeEval()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	key := keys[0]
	if f.data[key] != asString(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch {
	case script == swapScript:
		f.data[key] = asString(args[1])
	case strings.Contains(script, "PEXPIRE"):
		f.ttl[key] = time.Duration(args[1].(int64)) * time.Millisecond
	case strings.Contains(script, "DEL"):
		delete(f.data, key)
		delete(f.ttl, key)
	}
	return redis.NewCmdResult(int64(1), nil)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func TestSafetyStateRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	store := New(fake, Config{Prefix: "test"})
	ctx := context.Background()

	loaded, err := store.LoadSafetyState(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	at := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	state := domain.SafetyState{
		KillSwitchActive:      true,
		KillSwitchReason:      "daily loss limit reached",
		KillSwitchActivatedAt: &at,
		DailyPnL:              -550,
		TradesToday:           []domain.TradeOutcome{{Symbol: "BTCUSDT", Side: domain.Sell, Quantity: 0.1, Price: 50000, PnL: -550, Time: at}},
		ConsecutiveLosses:     1,
		LastResetDate:         "2024-03-10",
		LastKnownBalance:      10000,
	}
	err = store.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
		assert.Nil(t, current)
		return &state, nil
	})
	require.NoError(t, err)
	assert.Contains(t, fake.data, "test:safety:state")

	loaded, err = store.LoadSafetyState(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state, *loaded)

	// A nil result leaves the stored state alone.
	before := fake.data["test:safety:state"]
	err = store.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
		require.NotNil(t, current)
		assert.Equal(t, state, *current)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, fake.data["test:safety:state"])
}

func TestUpdateSafetyState_RetriesOnConcurrentWrite(t *testing.T) {
	fake := newFakeRedis()
	first := New(fake, Config{})
	second := New(fake, Config{})
	ctx := context.Background()

	// The other process trips the kill switch between our read and our write.
	fake.beforeEval = func() {
		fake.beforeEval = nil
		require.NoError(t, second.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
			return &domain.SafetyState{KillSwitchActive: true, KillSwitchReason: "manual halt"}, nil
		}))
	}

	calls := 0
	err := first.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
		calls++
		next := domain.SafetyState{DailyPnL: -10, ConsecutiveLosses: 1}
		if current != nil {
			next = *current
			next.DailyPnL -= 10
			next.ConsecutiveLosses++
		}
		return &next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	stored, err := first.LoadSafetyState(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.KillSwitchActive, "concurrent trip kept")
	assert.Equal(t, "manual halt", stored.KillSwitchReason)
	assert.Equal(t, 1, stored.ConsecutiveLosses)
}

func TestUpdateSafetyState_GivesUpUnderContention(t *testing.T) {
	fake := newFakeRedis()
	store := New(fake, Config{})
	ctx := context.Background()

	n := 0
	fake.beforeEval = func() {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		n++
		fake.data["decision-engine:safety:state"] = fmt.Sprintf(`{"daily_pnl":%d}`, n)
	}
	err := store.UpdateSafetyState(ctx, func(current *domain.SafetyState) (*domain.SafetyState, error) {
		return &domain.SafetyState{}, nil
	})
	assert.ErrorIs(t, err, ports.ErrStateStore)
	assert.Equal(t, maxUpdateAttempts, fake.evals)
}

func TestSafetyStateErrors(t *testing.T) {
	fake := newFakeRedis()
	store := New(fake, Config{})
	ctx := context.Background()
	noop := func(current *domain.SafetyState) (*domain.SafetyState, error) { return current, nil }

	fake.data["decision-engine:safety:state"] = "{not json"
	_, err := store.LoadSafetyState(ctx)
	assert.ErrorIs(t, err, ports.ErrStateStore)
	assert.ErrorIs(t, store.UpdateSafetyState(ctx, noop), ports.ErrStateStore)

	delete(fake.data, "decision-engine:safety:state")
	errRule := errors.New("rule failed")
	err = store.UpdateSafetyState(ctx, func(*domain.SafetyState) (*domain.SafetyState, error) { return nil, errRule })
	assert.ErrorIs(t, err, errRule)

	fake.err = errors.New("connection reset")
	_, err = store.LoadSafetyState(ctx)
	assert.ErrorIs(t, err, ports.ErrStateStore)
	assert.ErrorIs(t, store.UpdateSafetyState(ctx, noop), ports.ErrStateStore)
}

func TestBotLock(t *testing.T) {
	fake := newFakeRedis()
	first := New(fake, Config{LockTTL: time.Minute})
	second := New(fake, Config{LockTTL: time.Minute})
	ctx := context.Background()

	ok, err := first.TryLock(ctx, "bot-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// The owner refreshes its own lock.
	fake.ttl["decision-engine:bot:lock:bot-1"] = time.Second
	ok, err = first.TryLock(ctx, "bot-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, fake.ttl["decision-engine:bot:lock:bot-1"])

	ok, err = second.TryLock(ctx, "bot-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner can release.
	require.NoError(t, second.Unlock(ctx, "bot-1"))
	assert.Contains(t, fake.data, "decision-engine:bot:lock:bot-1")
	require.NoError(t, first.Unlock(ctx, "bot-1"))

	ok, err = second.TryLock(ctx, "bot-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBotLockErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("down")
	store := New(fake, Config{})

	_, err := store.TryLock(context.Background(), "bot-1")
	assert.ErrorIs(t, err, ports.ErrStateStore)
	assert.ErrorIs(t, store.Unlock(context.Background(), "bot-1"), ports.ErrStateStore)
}

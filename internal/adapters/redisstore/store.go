package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	safetyStateKey = "safety:state"
	botLockKey     = "bot:lock:%s"

	DefaultLockTTL = 15 * time.Minute

	maxUpdateAttempts = 10
)

// swapScript replaces the state only when it still holds the value the caller
// read. An empty expected value means the key must not exist.
const swapScript = `
local current = redis.call('GET', KEYS[1])
if (current or '') == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2])
	return 1
end
return 0`

// refreshScript extends a lock only when the caller still owns it.
const refreshScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0`

// releaseScript deletes a lock only when the caller still owns it.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`

// Client is the subset of *redis.Client the store uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Store keeps safety gate state and per-bot locks in Redis. State updates are
// compare-and-swap writes, so every engine process sharing the instance works
// on one gate state.
type Store struct {
	client  Client
	prefix  string
	owner   string
	lockTTL time.Duration
}

var (
	_ ports.SafetyStateStore = (*Store)(nil)
	_ ports.BotLock          = (*Store)(nil)
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	LockTTL  time.Duration
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w: %w", ports.ErrConnectionFailed, err)
	}
	return client, nil
}

// New wraps client. Each Store gets its own lock owner id.
func New(client Client, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "decision-engine"
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Store{client: client, prefix: prefix, owner: uuid.NewString(), lockTTL: ttl}
}

func (s *Store) key(format string, args ...interface{}) string {
	return s.prefix + ":" + fmt.Sprintf(format, args...)
}

// LoadSafetyState returns nil, nil when no state has been saved.
func (s *Store) LoadSafetyState(ctx context.Context) (*domain.SafetyState, error) {
	op := "LoadSafetyState"
	state, _, err := s.readState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return state, nil
}

// UpdateSafetyState runs fn on the stored state and swaps in its result,
// retrying fn when another process wrote the state in between.
func (s *Store) UpdateSafetyState(ctx context.Context, fn func(current *domain.SafetyState) (*domain.SafetyState, error)) error {
	op := "UpdateSafetyState"
	key := s.key(safetyStateKey)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, raw, err := s.readState(ctx)
		if err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		next, err := fn(current)
		if err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		if next == nil {
			return nil
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
		}
		swapped, err := s.client.Eval(ctx, swapScript, []string{key}, raw, string(encoded)).Int64()
		if err != nil {
			return fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
		}
		if swapped == 1 {
			return nil
		}
	}
	return fmt.Errorf("%s failed: %w: state kept changing after %d attempts", op, ports.ErrStateStore, maxUpdateAttempts)
}

// readState returns the decoded state and the raw value it was decoded from.
func (s *Store) readState(ctx context.Context) (*domain.SafetyState, string, error) {
	raw, err := s.client.Get(ctx, s.key(safetyStateKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ports.ErrStateStore, err)
	}
	var state domain.SafetyState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ports.ErrStateStore, err)
	}
	return &state, raw, nil
}

// TryLock acquires or refreshes the lock of a bot. It returns false when
// another process holds it.
func (s *Store) TryLock(ctx context.Context, botID string) (bool, error) {
	op := "TryLock"
	key := s.key(botLockKey, botID)

	acquired, err := s.client.SetNX(ctx, key, s.owner, s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
	}
	if acquired {
		return true, nil
	}

	refreshed, err := s.client.Eval(ctx, refreshScript, []string{key}, s.owner, s.lockTTL.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
	}
	return refreshed == 1, nil
}

// Unlock releases a lock held by this store. Releasing a lock owned by
// another process is a no-op.
func (s *Store) Unlock(ctx context.Context, botID string) error {
	op := "Unlock"
	if err := s.client.Eval(ctx, releaseScript, []string{s.key(botLockKey, botID)}, s.owner).Err(); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrStateStore, err)
	}
	return nil
}

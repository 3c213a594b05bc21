package ports

import (
	"context"

	"cryptoDecisionEngine/internal/domain"
)

// BotRepository stores bot definitions and their lifecycle status.
type BotRepository interface {
	// SaveBot inserts or replaces a bot definition.
	SaveBot(ctx context.Context, bot *domain.BotContext) error
	// FindBotByID returns nil, nil when the bot does not exist.
	FindBotByID(ctx context.Context, id string) (*domain.BotContext, error)
	// FindActiveBots returns every bot with active status.
	FindActiveBots(ctx context.Context) ([]*domain.BotContext, error)
	// SetBotStatus changes a bot's lifecycle status.
	SetBotStatus(ctx context.Context, id string, status domain.BotStatus) error
}

// TradeRepository stores executed trades.
type TradeRepository interface {
	// CreateTrade saves a trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.TradeRecord) (int64, error)
	// FindRecentByBot returns the latest trades of a bot, newest first.
	FindRecentByBot(ctx context.Context, botID string, limit int) ([]*domain.TradeRecord, error)
	// FindRecent returns the latest trades across all bots, newest first.
	FindRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)
}

// LedgerRepository persists paper-trading balances and positions.
type LedgerRepository interface {
	AccountProvider
	// UpsertBalance sets the cash balance of a user.
	UpsertBalance(ctx context.Context, userID string, balance float64) error
	// UpsertPosition sets the signed quantity and average price of a position; zero quantity removes it.
	UpsertPosition(ctx context.Context, userID, symbol string, quantity, avgPrice float64) error
}

// SafetyStateStore holds safety gate state shared by every engine process.
type SafetyStateStore interface {
	// LoadSafetyState returns nil, nil when no state has been saved.
	LoadSafetyState(ctx context.Context) (*domain.SafetyState, error)
	// UpdateSafetyState passes the stored state (nil when none) to fn and stores
	// the state fn returns, atomically with respect to other writers. fn may be
	// called again when the stored state changed underneath it. A nil result
	// leaves the stored state untouched.
	UpdateSafetyState(ctx context.Context, fn func(current *domain.SafetyState) (*domain.SafetyState, error)) error
}

// BotLock prevents two engine processes from running the same bot.
type BotLock interface {
	// TryLock returns false when another holder owns the lock.
	TryLock(ctx context.Context, botID string) (bool, error)
	Unlock(ctx context.Context, botID string) error
}

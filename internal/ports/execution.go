package ports

import (
	"context"

	"cryptoDecisionEngine/internal/domain"
)

// ExecutionClient submits orders for one execution venue (paper or real).
type ExecutionClient interface {
	// SubmitOrder places a market order for the trade and reports the fill.
	SubmitOrder(ctx context.Context, trade domain.TradeDetails) (*domain.ExecutionReport, error)
	// PlaceProtectiveOrders attaches stop-loss and take-profit orders to a filled trade.
	PlaceProtectiveOrders(ctx context.Context, trade domain.TradeDetails, fill *domain.ExecutionReport) (*domain.ProtectiveOrders, error)
	// CloseExposure immediately flattens quantity opened by side on symbol.
	CloseExposure(ctx context.Context, trade domain.TradeDetails, quantity float64) (*domain.ExecutionReport, error)
}

// AccountProvider reports balance and open exposure for a bot owner.
type AccountProvider interface {
	// GetAccountSnapshot returns a zero snapshot when the account is unknown.
	GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error)
}

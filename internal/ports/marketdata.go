package ports

import (
	"context"

	"cryptoDecisionEngine/internal/domain"
)

// MarketDataProvider supplies candles and depth snapshots.
type MarketDataProvider interface {
	// FetchCandles returns up to limit most recent candles, oldest first.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
	// FetchOrderBook returns the top depth levels on each side.
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)
}

// MLPredictor forecasts the next move from recent candles.
// A nil prediction with a nil error means no opinion.
type MLPredictor interface {
	Predict(ctx context.Context, symbol string, candles []domain.Candle) (*domain.Prediction, error)
}

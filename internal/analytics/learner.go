package analytics

import (
	"context"
	"fmt"

	"cryptoDecisionEngine/internal/ports"
)

// RiskAdjuster reacts to a bot's recent losing streak.
type RiskAdjuster interface {
	AdjustRiskParameters(ctx context.Context, consecutiveLosses int)
}

// Learner feeds a bot's recent performance back into risk management.
type Learner struct {
	trades ports.TradeRepository
	risk   RiskAdjuster
	logger ports.Logger
	window int
}

// NewLearner creates a Learner that analyzes the last window trades of a bot.
func NewLearner(trades ports.TradeRepository, risk RiskAdjuster, logger ports.Logger, window int) *Learner {
	if window <= 0 {
		window = 50
	}
	return &Learner{trades: trades, risk: risk, logger: logger, window: window}
}

// Learn analyzes the bot's recent trades against balance and adjusts risk.
func (l *Learner) Learn(ctx context.Context, botID string, balance float64) (*PerformanceMetrics, error) {
	op := "Learn"
	trades, err := l.trades.FindRecentByBot(ctx, botID, l.window)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	// Trades are replayed from the balance they led to.
	start := balance
	for _, t := range trades {
		start -= t.PnL
	}
	metrics := AnalyzePerformance(trades, start)
	l.risk.AdjustRiskParameters(ctx, metrics.CurrentLosingStreak)

	l.logger.Debug(ctx, op+": performance analyzed", map[string]interface{}{
		"bot_id":        botID,
		"trades":        metrics.TotalTrades,
		"win_rate":      metrics.WinRate,
		"max_drawdown":  metrics.MaxDrawdown,
		"expectancy":    metrics.Expectancy,
		"losing_streak": metrics.CurrentLosingStreak,
	})
	return metrics, nil
}

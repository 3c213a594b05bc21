package analytics

import (
	"testing"
	"time"

	"cryptoDecisionEngine/internal/domain"
)

func record(pnl float64, at time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{BotID: "bot-1", Symbol: "BTCUSDT", Side: domain.Sell, Quantity: 0.1, Price: 50000, PnL: pnl, CreatedAt: at}
}

func TestAnalyzePerformance(t *testing.T) {
	initialBalance := 10000.0
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		record(-1000, now.Add(-6*time.Hour)),
		record(1000, now.Add(-24*time.Hour)),
		record(0, now.Add(-30*time.Hour)), // opening fill
	}

	metrics := AnalyzePerformance(trades, initialBalance)

	if metrics.TotalTrades != 2 {
		t.Errorf("Expected 2 total trades, got %d", metrics.TotalTrades)
	}
	if metrics.WinningTrades != 1 {
		t.Errorf("Expected 1 winning trade, got %d", metrics.WinningTrades)
	}
	if metrics.LosingTrades != 1 {
		t.Errorf("Expected 1 losing trade, got %d", metrics.LosingTrades)
	}
	if metrics.WinRate != 0.5 {
		t.Errorf("Expected 0.5 win rate, got %f", metrics.WinRate)
	}
	if metrics.TotalProfit != 0 {
		t.Errorf("Expected 0 total profit, got %f", metrics.TotalProfit)
	}
	if metrics.FinalBalance != initialBalance {
		t.Errorf("Expected final balance of %f, got %f", initialBalance, metrics.FinalBalance)
	}
	if metrics.AverageWin != 1000 {
		t.Errorf("Expected 1000 average win, got %f", metrics.AverageWin)
	}
	if metrics.AverageLoss != -1000 {
		t.Errorf("Expected -1000 average loss, got %f", metrics.AverageLoss)
	}
	if metrics.ProfitFactor != 1.0 {
		t.Errorf("Expected 1.0 profit factor, got %f", metrics.ProfitFactor)
	}
	if metrics.RiskRewardRatio != 1.0 {
		t.Errorf("Expected 1.0 risk reward ratio, got %f", metrics.RiskRewardRatio)
	}
	if metrics.Expectancy != 0 {
		t.Errorf("Expected 0 expectancy, got %f", metrics.Expectancy)
	}
	if metrics.CurrentLosingStreak != 1 {
		t.Errorf("Expected losing streak of 1 after the latest trade, got %d", metrics.CurrentLosingStreak)
	}
	if len(metrics.EquityCurve) != 2 {
		t.Errorf("Expected 2 equity curve points, got %d", len(metrics.EquityCurve))
	}
	if metrics.EquityCurve[0].Value != 11000 {
		t.Errorf("Expected trades replayed oldest first, first equity point %f", metrics.EquityCurve[0].Value)
	}
	if len(metrics.GetMonthlyReturns()) != 1 {
		t.Errorf("Expected 1 monthly return, got %d", len(metrics.GetMonthlyReturns()))
	}
}

func TestAnalyzePerformanceEmptyTrades(t *testing.T) {
	metrics := AnalyzePerformance([]*domain.TradeRecord{}, 10000.0)
	if metrics.TotalTrades != 0 {
		t.Errorf("Expected 0 total trades, got %d", metrics.TotalTrades)
	}
	if metrics.FinalBalance != 10000.0 {
		t.Errorf("Expected final balance of 10000.0, got %f", metrics.FinalBalance)
	}
}

func TestAnalyzePerformanceDrawdown(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		record(1000, now.Add(-18*time.Hour)),
		record(-2200, now.Add(-6*time.Hour)),
	}

	metrics := AnalyzePerformance(trades, 10000.0)

	if metrics.MaxDrawdown != 0.2 {
		t.Errorf("Expected 0.2 max drawdown, got %f", metrics.MaxDrawdown)
	}
	if len(metrics.Drawdowns) != 1 {
		t.Fatalf("Expected 1 drawdown period, got %d", len(metrics.Drawdowns))
	}
	if metrics.Drawdowns[0].Depth != 0.2 {
		t.Errorf("Expected 0.2 drawdown depth, got %f", metrics.Drawdowns[0].Depth)
	}
}

func TestAnalyzePerformanceConsecutiveTrades(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	trades := []*domain.TradeRecord{
		record(1000, now.Add(-5*time.Hour)),
		record(1000, now.Add(-4*time.Hour)),
		record(-100, now.Add(-3*time.Hour)),
		record(-100, now.Add(-2*time.Hour)),
		record(-100, now.Add(-1*time.Hour)),
	}

	metrics := AnalyzePerformance(trades, 10000.0)

	if metrics.MaxConsecutiveWins != 2 {
		t.Errorf("Expected 2 max consecutive wins, got %d", metrics.MaxConsecutiveWins)
	}
	if metrics.MaxConsecutiveLosses != 3 {
		t.Errorf("Expected 3 max consecutive losses, got %d", metrics.MaxConsecutiveLosses)
	}
	if metrics.CurrentLosingStreak != 3 {
		t.Errorf("Expected current losing streak 3, got %d", metrics.CurrentLosingStreak)
	}
	if metrics.WinRate != 0.4 {
		t.Errorf("Expected 0.4 win rate, got %f", metrics.WinRate)
	}
}

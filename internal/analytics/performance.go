// Package analytics summarizes realized trading performance.
package analytics

import (
	"math"
	"sort"
	"time"

	"cryptoDecisionEngine/internal/domain"
)

// PerformanceMetrics holds performance metrics over a set of realized trades
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	// Streaks
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	CurrentLosingStreak  int

	Expectancy      float64
	RiskRewardRatio float64
	MonthlyReturns  map[string]float64
	Drawdowns       []Drawdown
	EquityCurve     []EquityPoint
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from trades. Records that
// did not realize PnL (opening fills) are skipped.
func AnalyzePerformance(trades []*domain.TradeRecord, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	realized := make([]*domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t != nil && t.PnL != 0 {
			realized = append(realized, t)
		}
	}
	if len(realized) == 0 {
		return metrics
	}

	sort.SliceStable(realized, func(i, j int) bool {
		return realized[i].CreatedAt.Before(realized[j].CreatedAt)
	})

	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var grossProfit, grossLoss float64

	for _, trade := range realized {
		metrics.TotalTrades++
		if trade.PnL > 0 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossProfit += trade.PnL
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss -= trade.PnL
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		currentBalance += trade.PnL
		metrics.TotalProfit += trade.PnL
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[trade.CreatedAt.Format("2006-01")] += trade.PnL

		var drawdown float64
		if peakBalance > 0 {
			drawdown = math.Max(0, (peakBalance-currentBalance)/peakBalance)
		}
		if currentBalance > peakBalance {
			peakBalance = currentBalance
			drawdown = 0
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.CreatedAt
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else if drawdown > 0 {
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.CreatedAt,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.CreatedAt,
			Value:    currentBalance,
			Drawdown: drawdown,
		})
	}
	metrics.CurrentLosingStreak = consecutiveLosses

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = realized[len(realized)-1].CreatedAt
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = -grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}
	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}
	if initialBalance > 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
	}
	metrics.Expectancy = metrics.WinRate*metrics.AverageWin + (1-metrics.WinRate)*metrics.AverageLoss

	return metrics
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

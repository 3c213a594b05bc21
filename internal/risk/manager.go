// Package risk sizes trades from recorded performance and current market conditions.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
	"cryptoDecisionEngine/internal/ports"
)

// Validation errors returned by ValidateTrade.
var (
	ErrInvalidTrade     = errors.New("invalid trade")
	ErrPositionTooLarge = errors.New("position exceeds risk profile")
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	MaxPositionSize   float64 // Fraction of balance
	MinPositionSize   float64 // Fraction of balance
	RiskPerTrade      float64
	MaxLeverage       float64
	DefaultKelly      float64
	HistorySize       int
	MinKellyTrades    int
	SizeTolerance     float64 // Allowed overshoot of the size cap in ValidateTrade
	LossStreakTrigger int     // Consecutive losses above which leverage is reduced
}

// DefaultRiskConfig returns the production defaults.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionSize:   0.10,
		MinPositionSize:   0.005,
		RiskPerTrade:      0.02,
		MaxLeverage:       10,
		DefaultKelly:      0.1,
		HistorySize:       1000,
		MinKellyTrades:    10,
		SizeTolerance:     0.01,
		LossStreakTrigger: 3,
	}
}

// RiskManager keeps the process-wide trade history and risk metrics.
// All methods are safe for concurrent use.
type RiskManager struct {
	mu      sync.RWMutex
	config  RiskConfig
	logger  ports.Logger
	trades  []domain.TradeRecord
	metrics domain.RiskMetrics
	now     func() time.Time
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, logger ports.Logger) *RiskManager {
	if config.HistorySize <= 0 {
		config.HistorySize = 1000
	}
	if config.MaxLeverage < 1 {
		config.MaxLeverage = 1
	}
	r := &RiskManager{
		config: config,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	r.metrics = domain.RiskMetrics{
		CurrentRisk:          0.5,
		KellyFraction:        config.DefaultKelly,
		OptimalLeverage:      1,
		ExpectedDrawdown:     0.2,
		HistoricalVolatility: 0.02,
		UpdatedAt:            r.now(),
	}
	return r
}

// RecordTrade appends a trade to the bounded history and refreshes Kelly and current risk.
func (r *RiskManager) RecordTrade(record domain.TradeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trades = append(r.trades, record)
	if over := len(r.trades) - r.config.HistorySize; over > 0 {
		r.trades = append(r.trades[:0:0], r.trades[over:]...)
	}
	r.metrics.KellyFraction = r.kellyLocked()
	r.metrics.CurrentRisk = r.currentRiskLocked()
	r.metrics.UpdatedAt = r.now()
}

// KellyFraction returns the full Kelly fraction of the recorded history, clamped to [0, 0.5].
func (r *RiskManager) KellyFraction() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kellyLocked()
}

// Metrics returns a snapshot of the current risk metrics.
func (r *RiskManager) Metrics() domain.RiskMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

// TradeCount returns the number of trades in the history window.
func (r *RiskManager) TradeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trades)
}

// realizedLocked returns the PnL of trades that closed exposure.
func (r *RiskManager) realizedLocked() []float64 {
	out := make([]float64, 0, len(r.trades))
	for _, t := range r.trades {
		if t.PnL != 0 {
			out = append(out, t.PnL)
		}
	}
	return out
}

func (r *RiskManager) kellyLocked() float64 {
	pnls := r.realizedLocked()
	if len(pnls) < r.config.MinKellyTrades {
		return r.config.DefaultKelly
	}

	var wins, losses []float64
	for _, p := range pnls {
		if p > 0 {
			wins = append(wins, p)
		} else {
			losses = append(losses, -p)
		}
	}
	if len(wins) == 0 || len(losses) == 0 {
		return r.config.DefaultKelly
	}
	avgLoss := indicators.Mean(losses)
	if avgLoss == 0 {
		return r.config.DefaultKelly
	}

	winRate := float64(len(wins)) / float64(len(pnls))
	payoff := indicators.Mean(wins) / avgLoss
	f := winRate - (1-winRate)/payoff
	return math.Max(0, math.Min(f, 0.5))
}

func (r *RiskManager) currentRiskLocked() float64 {
	pnls := r.realizedLocked()
	if len(pnls) == 0 {
		return 0.5
	}

	var wins int
	var profit, loss float64
	for _, p := range pnls {
		if p > 0 {
			wins++
			profit += p
		} else {
			loss -= p
		}
	}
	winRate := float64(wins) / float64(len(pnls))
	pfTerm := 1.0
	if loss > 0 {
		pfTerm = math.Min(1, profit/loss/5)
	}

	counts := make(map[string]int)
	for _, t := range r.trades {
		counts[t.Symbol]++
	}
	var concentration float64
	for _, c := range counts {
		share := float64(c) / float64(len(r.trades))
		concentration += share * share
	}

	score := 0.4*(1-winRate) + 0.3*(1-pfTerm) + 0.3*concentration
	return math.Max(0, math.Min(score, 1))
}

// CalculateRiskProfile derives the per-trade risk bounds for the given conditions.
func (r *RiskManager) CalculateRiskProfile(conditions domain.MarketConditions) domain.RiskProfile {
	r.mu.RLock()
	kelly := r.kellyLocked()
	leverage := r.metrics.OptimalLeverage
	r.mu.RUnlock()

	size := kelly * 0.5 * leverage * (1 - math.Min(conditions.Volatility, 0.5))
	size = math.Max(r.config.MinPositionSize, math.Min(size, r.config.MaxPositionSize))

	stop := DynamicStopLoss(conditions.Volatility, conditions.Regime)
	return domain.RiskProfile{
		MaxPositionSize: size,
		StopLossPct:     stop,
		TakeProfitPct:   stop * RewardRatio(conditions.Regime),
		RiskPerTrade:    r.config.RiskPerTrade,
		MaxLeverage:     leverage,
		EntryConfidence: entryConfidence(conditions),
		Regime:          conditions.Regime,
	}
}

// DynamicStopLoss returns the stop distance as a fraction of entry price.
func DynamicStopLoss(volatility float64, regime domain.MarketRegime) float64 {
	stop := volatility * 2
	if regime == domain.RegimeVolatile {
		stop *= 1.5
	}
	return math.Max(stop, 0.01)
}

// RewardRatio returns the take-profit multiple of the stop distance.
func RewardRatio(regime domain.MarketRegime) float64 {
	switch regime {
	case domain.RegimeTrending:
		return 3.0
	case domain.RegimeVolatile:
		return 2.5
	default:
		return 2.0
	}
}

func entryConfidence(c domain.MarketConditions) float64 {
	conf := 0.5
	if c.TrendStrength > 0.7 {
		conf += 0.2
	}
	if c.HighVolume {
		conf += 0.1
	}
	if !c.LiquiditySufficient {
		conf -= 0.3
	}
	return math.Max(0, math.Min(conf, 1))
}

// UpdateMetrics refreshes volatility, expected drawdown, current risk and optimal leverage
// from a close price series.
func (r *RiskManager) UpdateMetrics(ctx context.Context, closes []float64) domain.RiskMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rets := indicators.LogReturns(closes); len(rets) > 1 {
		r.metrics.HistoricalVolatility = indicators.StdDev(rets)
	}
	r.metrics.ExpectedDrawdown = 0.2
	if len(closes) >= 30 {
		r.metrics.ExpectedDrawdown = math.Max(0.05, math.Min(r.metrics.HistoricalVolatility*2.5, 0.5))
	}
	r.metrics.KellyFraction = r.kellyLocked()
	r.metrics.CurrentRisk = r.currentRiskLocked()
	r.metrics.OptimalLeverage = r.optimalLeverageLocked()
	r.metrics.UpdatedAt = r.now()

	m := r.metrics
	if r.logger != nil {
		r.logger.Info(ctx, "Risk metrics updated", map[string]interface{}{
			"current_risk":          m.CurrentRisk,
			"historical_volatility": m.HistoricalVolatility,
			"expected_drawdown":     m.ExpectedDrawdown,
			"optimal_leverage":      m.OptimalLeverage,
			"kelly_fraction":        m.KellyFraction,
		})
	}
	return m
}

func (r *RiskManager) optimalLeverageLocked() float64 {
	kelly := r.metrics.KellyFraction
	if kelly <= 0 {
		return 1
	}
	volFactor := 1.0
	if vol := r.metrics.HistoricalVolatility; vol > 0 {
		volFactor = math.Min(1, 0.2/vol)
	}
	return math.Min(r.config.MaxLeverage, math.Max(1, kelly*0.7*volFactor))
}

// CloseSource supplies the close series for a periodic metrics refresh.
type CloseSource func(ctx context.Context) ([]float64, error)

// RunPeriodicUpdates refreshes metrics every interval until ctx is done.
func (r *RiskManager) RunPeriodicUpdates(ctx context.Context, interval time.Duration, source CloseSource) {
	op := "RunPeriodicUpdates"
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closes, err := source(ctx)
			if err != nil {
				if r.logger != nil {
					r.logger.Error(ctx, err, op+": failed to load closes for risk update")
				}
				continue
			}
			r.UpdateMetrics(ctx, closes)
		}
	}
}

// AdjustRiskParameters cuts optimal leverage by 20% (floor 1) after a losing streak.
func (r *RiskManager) AdjustRiskParameters(ctx context.Context, consecutiveLosses int) {
	if consecutiveLosses <= r.config.LossStreakTrigger {
		return
	}
	r.mu.Lock()
	r.metrics.OptimalLeverage = math.Max(1, r.metrics.OptimalLeverage*0.8)
	leverage := r.metrics.OptimalLeverage
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info(ctx, "Risk exposure reduced due to consecutive losses", map[string]interface{}{
			"consecutive_losses": consecutiveLosses,
			"new_leverage":       leverage,
		})
	}
}

// ValidateTrade checks a prepared trade against the risk profile size cap.
func (r *RiskManager) ValidateTrade(trade domain.TradeDetails, balance float64, profile domain.RiskProfile) error {
	if trade.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %f must be positive", ErrInvalidTrade, trade.Quantity)
	}
	if trade.Price <= 0 {
		return fmt.Errorf("%w: price %f must be positive", ErrInvalidTrade, trade.Price)
	}
	limit := profile.MaxPositionSize * balance * (1 + r.config.SizeTolerance)
	if notional := trade.Notional(); notional > limit {
		return fmt.Errorf("%w: notional %.2f exceeds maximum allowed %.2f", ErrPositionTooLarge, notional, limit)
	}
	return nil
}

package domain

import "time"

// MarketRegime classifies current market behaviour.
type MarketRegime string

const (
	RegimeTrending MarketRegime = "trending"
	RegimeRanging  MarketRegime = "ranging"
	RegimeVolatile MarketRegime = "volatile"
	RegimeUnknown  MarketRegime = "unknown"
)

// SizingMethod selects the position sizing formula.
type SizingMethod string

const (
	SizingFixedFractional SizingMethod = "fixed_fractional"
	SizingKelly           SizingMethod = "kelly"
	SizingVolatility      SizingMethod = "volatility"
)

// MarketConditions feed the risk profile computation.
type MarketConditions struct {
	Volatility          float64 // Per-bar return stddev
	Regime              MarketRegime
	TrendStrength       float64 // [0,1]
	HighVolume          bool
	LiquiditySufficient bool
}

// RiskProfile bounds a single trade.
type RiskProfile struct {
	MaxPositionSize float64 // Fraction of balance, (0, 0.1]
	StopLossPct     float64
	TakeProfitPct   float64
	RiskPerTrade    float64
	MaxLeverage     float64
	EntryConfidence float64
	Regime          MarketRegime
}

// RiskMetrics is the process-wide risk state refreshed by trades and the periodic update.
type RiskMetrics struct {
	CurrentRisk          float64 // [0,1]
	KellyFraction        float64 // [0,0.5]
	OptimalLeverage      float64 // >= 1
	ExpectedDrawdown     float64
	HistoricalVolatility float64
	UpdatedAt            time.Time
}

// VaRResult reports value at risk and expected shortfall.
type VaRResult struct {
	Method            string
	Confidence        float64
	HorizonDays       int
	VaR               float64 // Currency loss, positive
	VaRPct            float64
	ExpectedShortfall float64
	ESPct             float64
}

// Package signal combines technical, pattern and microstructure factors into a
// single trading decision.
package signal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
	"cryptoDecisionEngine/internal/patterns"
)

// DefaultConfidenceThreshold is the minimum confidence for a non-hold action.
const DefaultConfidenceThreshold = 0.65

// Weights are the additive contributions of each factor plus the ML multiplier.
type Weights struct {
	Trend         float64
	Momentum      float64
	Volatility    float64
	Volume        float64
	Pattern       float64
	OrderFlow     float64
	VolumeProfile float64
	MLMultiplier  float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Trend:         0.25,
		Momentum:      0.25,
		Volatility:    0.10,
		Volume:        0.10,
		Pattern:       0.15,
		OrderFlow:     0.10,
		VolumeProfile: 0.05,
		MLMultiplier:  1.10,
	}
}

// Config tunes the synthesizer.
type Config struct {
	Weights           Weights
	DecisionThreshold float64 // Net score needed to leave hold
	ConfidenceDivisor float64 // Score that maps to full confidence
	MinCandles        int
	MLMinConfidence   float64
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		DecisionThreshold: 0.6,
		ConfidenceDivisor: 1.2,
		MinCandles:        50,
		MLMinConfidence:   0.6,
	}
}

// Input is the market data for one synthesis.
type Input struct {
	Symbol     string
	Candles    []domain.Candle
	OrderBook  *domain.OrderBook
	Prediction *domain.Prediction
}

// Synthesizer produces MarketSignals.
type Synthesizer struct {
	cfg      Config
	detector *patterns.Detector
	now      func() time.Time
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.ConfidenceDivisor <= 0 {
		cfg.ConfidenceDivisor = 1.2
	}
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = 50
	}
	return &Synthesizer{
		cfg:      cfg,
		detector: patterns.NewDetector(patterns.DefaultLookback),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Synthesize scores the market and returns a decision. Non-hold actions whose
// confidence is below threshold are turned into hold.
func (s *Synthesizer) Synthesize(in Input, threshold float64) domain.MarketSignal {
	sig := domain.MarketSignal{
		Symbol:    in.Symbol,
		Action:    domain.ActionHold,
		Timestamp: s.now(),
	}
	if len(in.Candles) < s.cfg.MinCandles {
		sig.RiskScore = 1.0
		sig.Reasoning = []string{"Insufficient data for analysis"}
		return sig
	}

	a := Analyze(in.Candles, in.OrderBook, s.detector)
	buy, sell, reasons := s.score(a, in.Prediction)

	net := buy - sell
	switch {
	case net > s.cfg.DecisionThreshold:
		sig.Action = domain.ActionBuy
		sig.Confidence = math.Min(buy/s.cfg.ConfidenceDivisor, 1)
		sig.Strength = math.Min(buy, 1)
	case net < -s.cfg.DecisionThreshold:
		sig.Action = domain.ActionSell
		sig.Confidence = math.Min(sell/s.cfg.ConfidenceDivisor, 1)
		sig.Strength = math.Min(sell, 1)
	default:
		sig.Confidence = 0.5
		sig.Strength = math.Min(math.Abs(net), 1)
		if len(reasons) == 0 {
			reasons = append(reasons, "Mixed signals - awaiting clearer confirmation")
		}
	}

	if !sig.IsHold() && sig.Confidence < threshold {
		reasons = append(reasons, fmt.Sprintf("Confidence %.2f below threshold %.2f, holding", sig.Confidence, threshold))
		sig.Action = domain.ActionHold
	}

	sig.Reasoning = reasons
	sig.RiskScore = RiskScore(in.Candles, a)
	sig.Indicators = map[string]float64{
		"price":       a.Price,
		"ema_9":       a.EMAFast,
		"ema_21":      a.EMAMid,
		"ema_50":      a.EMASlow,
		"rsi":         a.RSI,
		"stoch_k":     a.StochK,
		"macd_hist":   a.MACDHist,
		"bb_position": a.BBPosition,
		"atr":         a.ATR,
		"buy_score":   buy,
		"sell_score":  sell,
		"buy_flow":    a.OrderFlow.BuyPressure,
		"poc":         a.Profile.POC,
	}
	return sig
}

func (s *Synthesizer) score(a Analysis, pred *domain.Prediction) (buy, sell float64, reasons []string) {
	w := s.cfg.Weights

	if math.Abs(a.TrendScore) > 0.6 {
		dir := "bullish"
		if a.TrendScore > 0 {
			buy += w.Trend * a.TrendScore
		} else {
			sell += w.Trend * -a.TrendScore
			dir = "bearish"
		}
		if math.Abs(a.TrendScore) == 1 {
			reasons = append(reasons, fmt.Sprintf("Strong %s trend: EMA 9/21/50 aligned (strength: %.2f)", dir, a.TrendStrength))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s trend: EMA 9 crossed EMA 21 (strength: %.2f)", capitalize(dir), a.TrendStrength))
		}
	}

	switch {
	case a.MomentumScore > 0.5:
		buy += w.Momentum
		reasons = append(reasons, fmt.Sprintf("Positive momentum (RSI: %.1f)", a.RSI))
	case a.MomentumScore < -0.5:
		sell += w.Momentum
		reasons = append(reasons, fmt.Sprintf("Negative momentum (RSI: %.1f)", a.RSI))
	}

	switch {
	case a.BBPosition < 0.2:
		buy += w.Volatility
		reasons = append(reasons, "Price at lower Bollinger Band")
	case a.BBPosition > 0.8:
		sell += w.Volatility
		reasons = append(reasons, "Price at upper Bollinger Band")
	}

	if a.VolumeSpike {
		if a.OBVRising {
			buy += w.Volume
			reasons = append(reasons, "Volume surge confirms buying pressure")
		} else {
			sell += w.Volume
			reasons = append(reasons, "Volume surge confirms selling pressure")
		}
	}

	if a.Pattern != nil {
		switch a.Pattern.Type.Bias() {
		case domain.BiasBullish:
			buy += w.Pattern * a.Pattern.Confidence
			reasons = append(reasons, fmt.Sprintf("Bullish pattern: %s detected", a.Pattern.Type))
		case domain.BiasBearish:
			sell += w.Pattern * a.Pattern.Confidence
			reasons = append(reasons, fmt.Sprintf("Bearish pattern: %s detected", a.Pattern.Type))
		}
	}

	switch a.OrderFlow.Signal {
	case domain.BiasBullish:
		buy += w.OrderFlow
		reasons = append(reasons, fmt.Sprintf("Bullish order flow (buy pressure: %.2f%%)", a.OrderFlow.BuyPressure*100))
	case domain.BiasBearish:
		sell += w.OrderFlow
		reasons = append(reasons, fmt.Sprintf("Bearish order flow (buy pressure: %.2f%%)", a.OrderFlow.BuyPressure*100))
	}

	if a.Profile.Valid {
		switch {
		case a.Profile.Position == domain.BelowValue && a.Price < a.Profile.POC:
			buy += w.VolumeProfile
			reasons = append(reasons, fmt.Sprintf("Price below POC ($%.2f) - potential reversion", a.Profile.POC))
		case a.Profile.Position == domain.AboveValue && a.Price > a.Profile.POC:
			sell += w.VolumeProfile
			reasons = append(reasons, fmt.Sprintf("Price above POC ($%.2f) - potential reversion", a.Profile.POC))
		}
	}

	if pred != nil && pred.Confidence > s.cfg.MLMinConfidence {
		switch pred.Direction {
		case domain.BiasBullish:
			buy *= w.MLMultiplier
			reasons = append(reasons, fmt.Sprintf("ML prediction: bullish (%.2f%%)", pred.Confidence*100))
		case domain.BiasBearish:
			sell *= w.MLMultiplier
			reasons = append(reasons, fmt.Sprintf("ML prediction: bearish (%.2f%%)", pred.Confidence*100))
		}
	}
	return buy, sell, reasons
}

// RiskScore combines volatility, liquidity and drawdown risk into [0,1].
func RiskScore(candles []domain.Candle, a Analysis) float64 {
	closes := domain.Closes(domain.Tail(candles, 50))
	volRisk := math.Min(indicators.StdDev(indicators.Returns(closes))*math.Sqrt(252)/0.5, 1)
	liquidityRisk := 1 - a.OrderFlow.LiquidityScore
	drawdownRisk := math.Min(indicators.MaxDrawdown(closes)/0.2, 1)

	multiplier := 1.0
	switch a.VolatilityState {
	case VolatilityExtreme:
		multiplier = 1.5
	case VolatilityHigh:
		multiplier = 1.2
	}

	score := volRisk*0.4*multiplier + liquidityRisk*0.3 + drawdownRisk*0.3
	return math.Max(0, math.Min(score, 1))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

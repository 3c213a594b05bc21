package strategy

import (
	"context"
	"fmt"
	"math"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
	"cryptoDecisionEngine/internal/ports"
)

// SimpleMAConfig holds parameters for the moving average strategy.
type SimpleMAConfig struct {
	ShortTermMAPeriod int     // e.g., 20
	LongTermMAPeriod  int     // e.g., 50
	EMAPeriod         int     // e.g., 20
	RSIPeriod         int     // e.g., 14
	RSIOverbought     float64 // e.g., 70.0
	RSIOversold       float64 // e.g., 30.0
}

// DefaultSimpleMAConfig returns the SMA 20/50 configuration.
func DefaultSimpleMAConfig() SimpleMAConfig {
	return SimpleMAConfig{
		ShortTermMAPeriod: 20,
		LongTermMAPeriod:  50,
		EMAPeriod:         20,
		RSIPeriod:         14,
		RSIOverbought:     70,
		RSIOversold:       30,
	}
}

// SimpleMA trades SMA alignment and crossovers confirmed by EMA and RSI.
type SimpleMA struct {
	cfg       SimpleMAConfig
	threshold float64
	logger    ports.Logger
}

// NewSimpleMA creates a new SimpleMA instance.
func NewSimpleMA(cfg SimpleMAConfig, threshold float64, logger ports.Logger) (*SimpleMA, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.ShortTermMAPeriod <= 0 || cfg.LongTermMAPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if cfg.ShortTermMAPeriod >= cfg.LongTermMAPeriod {
		return nil, fmt.Errorf("short term MA period must be less than long term MA period")
	}
	return &SimpleMA{cfg: cfg, threshold: threshold, logger: logger}, nil
}

func (s *SimpleMA) Kind() domain.StrategyKind { return domain.StrategySimpleMA }

// RequiredDataPoints returns the minimum number of candles needed, one more
// than the longest period so the previous bar's averages exist for crossovers.
func (s *SimpleMA) RequiredDataPoints() int {
	maxPeriod := max(s.cfg.LongTermMAPeriod, s.cfg.EMAPeriod, s.cfg.RSIPeriod)
	return maxPeriod + 1
}

func (s *SimpleMA) Evaluate(ctx context.Context, in Input) (domain.MarketSignal, error) {
	if len(in.Candles) < s.RequiredDataPoints() {
		s.logger.Debug(ctx, "Not enough candle data for strategy evaluation",
			map[string]interface{}{"available": len(in.Candles), "required": s.RequiredDataPoints()})
		return insufficient(in), nil
	}

	closes := domain.Closes(in.Candles)
	prev := closes[:len(closes)-1]
	price := closes[len(closes)-1]

	shortMA, err := indicators.SMA(closes, s.cfg.ShortTermMAPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("short term MA: %w", err)
	}
	longMA, err := indicators.SMA(closes, s.cfg.LongTermMAPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("long term MA: %w", err)
	}
	prevShort, err := indicators.SMA(prev, s.cfg.ShortTermMAPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("previous short term MA: %w", err)
	}
	prevLong, err := indicators.SMA(prev, s.cfg.LongTermMAPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("previous long term MA: %w", err)
	}
	ema, err := indicators.LastEMA(closes, s.cfg.EMAPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("EMA: %w", err)
	}
	rsi, err := indicators.RSI(closes, s.cfg.RSIPeriod)
	if err != nil {
		return domain.MarketSignal{}, fmt.Errorf("RSI: %w", err)
	}

	sig := newSignal(in)
	sig.Indicators["sma_short"] = shortMA
	sig.Indicators["sma_long"] = longMA
	sig.Indicators["ema"] = ema
	sig.Indicators["rsi"] = rsi
	if longMA > 0 {
		sig.Strength = math.Min(math.Abs(shortMA-longMA)/longMA*100, 1)
	}

	isTrendingUp := price > shortMA && shortMA > longMA && price > ema && rsi < s.cfg.RSIOverbought
	isTrendingDown := price < shortMA && shortMA < longMA && price < ema && rsi > s.cfg.RSIOversold
	crossedUp := prevShort <= prevLong && shortMA > longMA
	crossedDown := prevShort >= prevLong && shortMA < longMA

	switch {
	case isTrendingUp:
		sig.Action = domain.ActionBuy
		sig.Confidence = 0.7
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("Price above SMA %d/%d and EMA %d (RSI: %.1f)",
			s.cfg.ShortTermMAPeriod, s.cfg.LongTermMAPeriod, s.cfg.EMAPeriod, rsi))
		if crossedUp {
			sig.Confidence = 0.85
			sig.Reasoning = append(sig.Reasoning, "Fresh bullish SMA crossover")
		}
	case isTrendingDown:
		sig.Action = domain.ActionSell
		sig.Confidence = 0.7
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("Price below SMA %d/%d and EMA %d (RSI: %.1f)",
			s.cfg.ShortTermMAPeriod, s.cfg.LongTermMAPeriod, s.cfg.EMAPeriod, rsi))
		if crossedDown {
			sig.Confidence = 0.85
			sig.Reasoning = append(sig.Reasoning, "Fresh bearish SMA crossover")
		}
	default:
		sig.Reasoning = append(sig.Reasoning, "Moving averages not aligned")
	}

	s.logger.Debug(ctx, "Moving average strategy evaluated", map[string]interface{}{
		"currentPrice": price,
		"shortMA":      shortMA,
		"longMA":       longMA,
		"ema":          ema,
		"rsi":          rsi,
		"action":       string(sig.Action),
	})
	return applyThreshold(sig, s.threshold), nil
}

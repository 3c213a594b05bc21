package strategy

import (
	"context"
	"fmt"
	"math"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
	"cryptoDecisionEngine/internal/ports"
)

// rsiSource buys oversold and sells overbought readings of Wilder's RSI.
type rsiSource struct {
	period     int
	oversold   float64
	overbought float64
	threshold  float64
	logger     ports.Logger
}

func (r *rsiSource) Kind() domain.StrategyKind { return domain.StrategyRSI }

func (r *rsiSource) Evaluate(ctx context.Context, in Input) (domain.MarketSignal, error) {
	rsi, err := indicators.RSI(domain.Closes(in.Candles), r.period)
	if err != nil {
		r.logger.Debug(ctx, "Not enough candle data for RSI strategy", map[string]interface{}{"available": len(in.Candles)})
		return insufficient(in), nil
	}

	sig := newSignal(in)
	sig.Indicators["rsi"] = rsi
	switch {
	case rsi < r.oversold:
		depth := (r.oversold - rsi) / r.oversold
		sig.Action = domain.ActionBuy
		sig.Confidence = math.Min(0.6+0.4*depth, 1)
		sig.Strength = depth
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("RSI oversold (%.1f < %.0f)", rsi, r.oversold))
	case rsi > r.overbought:
		depth := (rsi - r.overbought) / (100 - r.overbought)
		sig.Action = domain.ActionSell
		sig.Confidence = math.Min(0.6+0.4*depth, 1)
		sig.Strength = depth
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("RSI overbought (%.1f > %.0f)", rsi, r.overbought))
	default:
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("RSI neutral (%.1f)", rsi))
	}
	return applyThreshold(sig, r.threshold), nil
}

// momentumSource follows the MACD histogram when rate of change agrees.
type momentumSource struct {
	rocPeriod    int
	rocThreshold float64
	threshold    float64
	logger       ports.Logger
}

func (m *momentumSource) Kind() domain.StrategyKind { return domain.StrategyMomentum }

func (m *momentumSource) Evaluate(ctx context.Context, in Input) (domain.MarketSignal, error) {
	closes := domain.Closes(in.Candles)
	macd, err := indicators.MACD(closes, 12, 26, 9)
	if err != nil || len(closes) <= m.rocPeriod {
		m.logger.Debug(ctx, "Not enough candle data for momentum strategy", map[string]interface{}{"available": len(in.Candles)})
		return insufficient(in), nil
	}

	last := closes[len(closes)-1]
	base := closes[len(closes)-1-m.rocPeriod]
	var roc float64
	if base > 0 {
		roc = last/base - 1
	}
	hist := macd.Histogram
	h := hist[len(hist)-1]
	rising := len(hist) > 1 && h > hist[len(hist)-2]

	sig := newSignal(in)
	sig.Indicators["macd_hist"] = h
	sig.Indicators["roc"] = roc
	sig.Strength = math.Min(math.Abs(roc)*10, 1)

	conf := math.Min(0.5+math.Abs(roc)*5, 0.9)
	switch {
	case h > 0 && roc > m.rocThreshold:
		sig.Action = domain.ActionBuy
		if rising {
			conf += 0.1
		}
		sig.Confidence = conf
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("Positive momentum: MACD histogram %.4f, ROC %.2f%%", h, roc*100))
	case h < 0 && roc < -m.rocThreshold:
		sig.Action = domain.ActionSell
		if !rising {
			conf += 0.1
		}
		sig.Confidence = conf
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("Negative momentum: MACD histogram %.4f, ROC %.2f%%", h, roc*100))
	default:
		sig.Reasoning = append(sig.Reasoning, "No momentum confirmation")
	}
	return applyThreshold(sig, m.threshold), nil
}

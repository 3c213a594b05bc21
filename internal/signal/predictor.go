package signal

import (
	"context"
	"math"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
)

const heuristicSource = "heuristic"

// HeuristicPredictor is a rule-based stand-in for a learned model. It scores
// short-term returns, medium-term momentum and volume change.
type HeuristicPredictor struct {
	MinCandles int
}

// NewHeuristicPredictor creates a predictor that needs at least 20 candles.
func NewHeuristicPredictor() *HeuristicPredictor {
	return &HeuristicPredictor{MinCandles: 20}
}

// Predict returns nil without error when there is not enough history.
func (p *HeuristicPredictor) Predict(ctx context.Context, symbol string, candles []domain.Candle) (*domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candles) < max(p.MinCandles, 20) {
		return nil, nil
	}

	closes := domain.Closes(candles)
	volumes := domain.Volumes(candles)
	n := len(closes)
	last := closes[n-1]

	score := 0.0
	if prev := closes[n-6]; prev > 0 {
		switch ret := last/prev - 1; {
		case ret > 0.02:
			score++
		case ret < -0.02:
			score--
		}
	}
	if prev := closes[n-11]; prev > 0 {
		switch mom := last/prev - 1; {
		case mom > 0.05:
			score++
		case mom < -0.05:
			score--
		}
	}
	if older := indicators.Mean(volumes[n-10 : n-5]); older > 0 {
		switch ratio := indicators.Mean(volumes[n-5:]) / older; {
		case ratio > 1.2:
			score += 0.5
		case ratio < 0.8:
			score -= 0.5
		}
	}

	scale := 1.0
	if indicators.StdDev(indicators.Returns(closes[n-20:])) > 0.03 {
		scale = 0.8
	}

	pred := &domain.Prediction{Direction: domain.BiasNeutral, Confidence: 0.5, Source: heuristicSource}
	switch {
	case score > 1:
		pred.Direction = domain.BiasBullish
		pred.Confidence = math.Min(0.5+0.15*score, 0.95) * scale
	case score < -1:
		pred.Direction = domain.BiasBearish
		pred.Confidence = math.Min(0.5-0.15*score, 0.95) * scale
	}
	return pred, nil
}

package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"cryptoDecisionEngine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendCandles(n int, step float64) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		c := 200 + step*float64(i)
		out[i] = domain.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
			Symbol:    "BTCUSDT",
			Open:      c - step/2,
			High:      math.Max(c, c-step/2) + 0.5,
			Low:       math.Min(c, c-step/2) - 0.5,
			Close:     c,
			Volume:    100,
		}
	}
	return out
}

func geometricCandles(n int, rate float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := 100.0
	for i := range out {
		out[i] = domain.Candle{Open: price, High: price * 1.001, Low: price * 0.999, Close: price, Volume: 50}
		price *= 1 + rate
	}
	return out
}

func trendOnlyConfig(trendWeight float64) Config {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Trend: trendWeight, MLMultiplier: 1.3}
	return cfg
}

func TestSynthesize_InsufficientData(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())

	sig := s.Synthesize(Input{Symbol: "BTCUSDT", Candles: trendCandles(49, 1)}, DefaultConfidenceThreshold)

	assert.Equal(t, domain.ActionHold, sig.Action)
	assert.Equal(t, 1.0, sig.RiskScore)
	assert.Equal(t, []string{"Insufficient data for analysis"}, sig.Reasoning)
	assert.Equal(t, "BTCUSDT", sig.Symbol)
}

func TestSynthesize_Direction(t *testing.T) {
	tests := []struct {
		name       string
		step       float64
		wantAction domain.Action
	}{
		{name: "uptrend buys", step: 1, wantAction: domain.ActionBuy},
		{name: "downtrend sells", step: -1, wantAction: domain.ActionSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(trendOnlyConfig(1.0))

			sig := s.Synthesize(Input{Symbol: "BTCUSDT", Candles: trendCandles(80, tt.step)}, DefaultConfidenceThreshold)

			assert.Equal(t, tt.wantAction, sig.Action)
			assert.InDelta(t, 1.0/1.2, sig.Confidence, 1e-9)
			assert.Equal(t, 1.0, sig.Strength)
			require.NotEmpty(t, sig.Reasoning)
			assert.Contains(t, sig.Reasoning[0], "Strong")
			assert.Contains(t, sig.Indicators, "rsi")
		})
	}
}

func TestSynthesize_BelowThresholdHolds(t *testing.T) {
	s := NewSynthesizer(trendOnlyConfig(1.0))

	sig := s.Synthesize(Input{Candles: trendCandles(80, 1)}, 0.9)

	assert.Equal(t, domain.ActionHold, sig.Action)
	assert.InDelta(t, 1.0/1.2, sig.Confidence, 1e-9)
	assert.Contains(t, sig.Reasoning[len(sig.Reasoning)-1], "below threshold 0.90")
}

func TestSynthesize_MLPredictionAmplifies(t *testing.T) {
	candles := trendCandles(80, 1)

	tests := []struct {
		name       string
		pred       *domain.Prediction
		wantAction domain.Action
	}{
		{name: "no prediction", pred: nil, wantAction: domain.ActionHold},
		{name: "weak prediction ignored", pred: &domain.Prediction{Direction: domain.BiasBullish, Confidence: 0.55}, wantAction: domain.ActionHold},
		{name: "opposing prediction ignored", pred: &domain.Prediction{Direction: domain.BiasBearish, Confidence: 0.9}, wantAction: domain.ActionHold},
		{name: "confident bullish prediction", pred: &domain.Prediction{Direction: domain.BiasBullish, Confidence: 0.7}, wantAction: domain.ActionBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(trendOnlyConfig(0.5))

			sig := s.Synthesize(Input{Candles: candles, Prediction: tt.pred}, 0)

			assert.Equal(t, tt.wantAction, sig.Action)
		})
	}
}

func TestSynthesize_FlatMarketIsMixed(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())

	sig := s.Synthesize(Input{Candles: trendCandles(80, 0)}, DefaultConfidenceThreshold)

	assert.Equal(t, domain.ActionHold, sig.Action)
	assert.Equal(t, 0.5, sig.Confidence)
	assert.Equal(t, []string{"Mixed signals - awaiting clearer confirmation"}, sig.Reasoning)
}

func TestSynthesize_RiskScoreBounded(t *testing.T) {
	s := NewSynthesizer(DefaultConfig())

	for _, step := range []float64{-3, -1, 0, 1, 3} {
		sig := s.Synthesize(Input{Candles: trendCandles(120, step)}, DefaultConfidenceThreshold)
		assert.GreaterOrEqual(t, sig.RiskScore, 0.0)
		assert.LessOrEqual(t, sig.RiskScore, 1.0)
		assert.GreaterOrEqual(t, sig.Confidence, 0.0)
		assert.LessOrEqual(t, sig.Confidence, 1.0)
	}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		name       string
		candles    []domain.Candle
		wantRegime domain.MarketRegime
	}{
		{name: "short history", candles: trendCandles(30, 1), wantRegime: domain.RegimeUnknown},
		{name: "aligned trend", candles: trendCandles(80, 1), wantRegime: domain.RegimeTrending},
		{name: "flat", candles: trendCandles(80, 0), wantRegime: domain.RegimeRanging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Conditions(tt.candles, nil)
			assert.Equal(t, tt.wantRegime, got.Regime)
			assert.GreaterOrEqual(t, got.Volatility, 0.0)
		})
	}
}

func TestHeuristicPredictor(t *testing.T) {
	p := NewHeuristicPredictor()
	ctx := context.Background()

	tests := []struct {
		name          string
		candles       []domain.Candle
		wantNil       bool
		wantDirection domain.Bias
		wantConf      float64
	}{
		{name: "not enough candles", candles: geometricCandles(19, 0.01), wantNil: true},
		{name: "rising", candles: geometricCandles(40, 0.01), wantDirection: domain.BiasBullish, wantConf: 0.8},
		{name: "falling", candles: geometricCandles(40, -0.01), wantDirection: domain.BiasBearish, wantConf: 0.8},
		{name: "flat", candles: geometricCandles(40, 0), wantDirection: domain.BiasNeutral, wantConf: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Predict(ctx, "BTCUSDT", tt.candles)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantDirection, got.Direction)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Equal(t, "heuristic", got.Source)
		})
	}
}

func TestHeuristicPredictor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHeuristicPredictor().Predict(ctx, "BTCUSDT", geometricCandles(40, 0.01))
	assert.ErrorIs(t, err, context.Canceled)
}

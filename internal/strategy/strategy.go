// Package strategy resolves a bot's configured strategy into a signal source.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"
	"cryptoDecisionEngine/internal/signal"
)

// MLConfidenceThreshold is the decision threshold of the model-driven strategies.
const MLConfidenceThreshold = 0.6

// ErrUnknownStrategy is returned by Resolve for a kind outside the supported set.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Input is the market data handed to a Source each cycle.
type Input struct {
	Symbol    string
	Candles   []domain.Candle
	OrderBook *domain.OrderBook
}

// Source produces a trading decision for a bot each cycle.
type Source interface {
	Kind() domain.StrategyKind
	Evaluate(ctx context.Context, in Input) (domain.MarketSignal, error)
}

// Deps are the shared collaborators strategies are built from.
type Deps struct {
	Synthesizer *signal.Synthesizer
	Predictor   ports.MLPredictor
	Logger      ports.Logger
}

// Resolve builds the Source for kind. It runs once per bot, not per cycle.
func Resolve(kind domain.StrategyKind, deps Deps, cfg domain.BotConfig) (Source, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = signal.NewSynthesizer(signal.DefaultConfig())
	}
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = signal.DefaultConfidenceThreshold
	}

	switch kind {
	case domain.StrategySmartAdaptive:
		// The predictor is optional here; without one the synthesis runs unscaled.
		return &adaptive{
			kind:      kind,
			synth:     deps.Synthesizer,
			predictor: deps.Predictor,
			threshold: threshold,
			logger:    deps.Logger,
		}, nil
	case domain.StrategyMLEnhanced, domain.StrategyEnsemble, domain.StrategyNeuralNetwork:
		if deps.Predictor == nil {
			return nil, fmt.Errorf("strategy %s requires an ML predictor", kind)
		}
		return &adaptive{
			kind:      kind,
			synth:     deps.Synthesizer,
			predictor: deps.Predictor,
			threshold: MLConfidenceThreshold,
			logger:    deps.Logger,
		}, nil
	case domain.StrategySimpleMA:
		return NewSimpleMA(DefaultSimpleMAConfig(), threshold, deps.Logger)
	case domain.StrategyRSI:
		return &rsiSource{period: 14, oversold: 30, overbought: 70, threshold: threshold, logger: deps.Logger}, nil
	case domain.StrategyMomentum:
		return &momentumSource{rocPeriod: 10, rocThreshold: 0.02, threshold: threshold, logger: deps.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
}

// adaptive delegates to the signal synthesizer, optionally with a model prediction.
type adaptive struct {
	kind      domain.StrategyKind
	synth     *signal.Synthesizer
	predictor ports.MLPredictor
	threshold float64
	logger    ports.Logger
}

func (a *adaptive) Kind() domain.StrategyKind { return a.kind }

func (a *adaptive) Evaluate(ctx context.Context, in Input) (domain.MarketSignal, error) {
	var pred *domain.Prediction
	if a.predictor != nil {
		p, err := a.predictor.Predict(ctx, in.Symbol, in.Candles)
		if err != nil {
			a.logger.Warn(ctx, "ML prediction unavailable, continuing without it", map[string]interface{}{
				"symbol":   in.Symbol,
				"strategy": string(a.kind),
				"error":    err.Error(),
			})
		} else {
			pred = p
		}
	}
	return a.synth.Synthesize(signal.Input{
		Symbol:     in.Symbol,
		Candles:    in.Candles,
		OrderBook:  in.OrderBook,
		Prediction: pred,
	}, a.threshold), nil
}

// newSignal starts a hold signal carrying the shared risk score.
func newSignal(in Input) domain.MarketSignal {
	a := signal.Analyze(in.Candles, in.OrderBook, nil)
	return domain.MarketSignal{
		Symbol:     in.Symbol,
		Action:     domain.ActionHold,
		Confidence: 0.5,
		RiskScore:  signal.RiskScore(in.Candles, a),
		Timestamp:  time.Now().UTC(),
		Indicators: map[string]float64{"price": a.Price},
	}
}

func insufficient(in Input) domain.MarketSignal {
	return domain.MarketSignal{
		Symbol:    in.Symbol,
		Action:    domain.ActionHold,
		RiskScore: 1.0,
		Timestamp: time.Now().UTC(),
		Reasoning: []string{"Insufficient data for analysis"},
	}
}

// applyThreshold turns a low-confidence decision into hold.
func applyThreshold(sig domain.MarketSignal, threshold float64) domain.MarketSignal {
	if !sig.IsHold() && sig.Confidence < threshold {
		sig.Reasoning = append(sig.Reasoning, fmt.Sprintf("Confidence %.2f below threshold %.2f, holding", sig.Confidence, threshold))
		sig.Action = domain.ActionHold
	}
	return sig
}

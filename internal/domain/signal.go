package domain

import "time"

// MarketSignal is the synthesized trading decision for one symbol.
type MarketSignal struct {
	Symbol     string
	Action     Action
	Confidence float64  // [0,1]
	Strength   float64  // [0,1]
	Reasoning  []string // Ordered explanation of contributing factors
	RiskScore  float64  // [0,1]
	Timestamp  time.Time

	// Indicators is a snapshot of the values the decision was based on.
	Indicators map[string]float64
}

// IsHold reports whether the signal results in no trade.
func (s MarketSignal) IsHold() bool {
	return s.Action == ActionHold
}

// Prediction is a directional forecast from an ML provider.
type Prediction struct {
	Direction  Bias
	Confidence float64
	Source     string
}

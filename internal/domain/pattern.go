package domain

// PatternType names a recognized chart pattern.
type PatternType string

const (
	PatternHeadAndShoulders   PatternType = "head_and_shoulders"
	PatternDoubleTop          PatternType = "double_top"
	PatternDoubleBottom       PatternType = "double_bottom"
	PatternAscendingTriangle  PatternType = "ascending_triangle"
	PatternDescendingTriangle PatternType = "descending_triangle"
	PatternSymmetricTriangle  PatternType = "symmetrical_triangle"
	PatternBullFlag           PatternType = "bull_flag"
	PatternBearFlag           PatternType = "bear_flag"
	PatternBullPennant        PatternType = "bull_pennant"
	PatternBearPennant        PatternType = "bear_pennant"
)

// Bias classifies the directional implication of the pattern.
func (p PatternType) Bias() Bias {
	switch p {
	case PatternDoubleBottom, PatternAscendingTriangle, PatternBullFlag, PatternBullPennant:
		return BiasBullish
	case PatternHeadAndShoulders, PatternDoubleTop, PatternDescendingTriangle, PatternBearFlag, PatternBearPennant:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

// PatternMatch is a detected pattern instance.
type PatternMatch struct {
	Type         PatternType
	Confidence   float64  // [0,1]
	Target       *float64 // Projected price, nil when the pattern has none
	Invalidation *float64 // Price that voids the pattern, nil when undefined
	Timeframe    string
}

package patterns

import (
	"math"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
)

const (
	triangleWindow     = 20
	flatSlope          = 0.001
	trendSlope         = 0.002
	convergingSlope    = 0.001
	flagPoleBars       = 15
	flagMinPole        = 0.05
	flagMaxRange       = 0.03
	pennantSlope       = 0.0005
	triangleConf       = 0.70
	symmetricConf      = 0.65
	flagConf           = 0.75
	pennantConf        = 0.70
	minFlagObservation = 2 * flagPoleBars
)

// detectTriangle classifies converging trendlines over the last bars.
// Slopes are relative to the mean price so thresholds hold at any price level.
func detectTriangle(s series) (domain.PatternMatch, bool) {
	if len(s.highs) < triangleWindow {
		return domain.PatternMatch{}, false
	}
	highs := s.highs[len(s.highs)-triangleWindow:]
	lows := s.lows[len(s.lows)-triangleWindow:]
	hs, ls := relativeSlope(highs), relativeSlope(lows)
	lastHigh, lastLow := highs[len(highs)-1], lows[len(lows)-1]

	switch {
	case math.Abs(hs) < flatSlope && ls > trendSlope:
		return domain.PatternMatch{
			Type:         domain.PatternAscendingTriangle,
			Confidence:   triangleConf,
			Target:       price(lastHigh * 1.05),
			Invalidation: price(lastLow * 0.97),
		}, true
	case math.Abs(ls) < flatSlope && hs < -trendSlope:
		return domain.PatternMatch{
			Type:         domain.PatternDescendingTriangle,
			Confidence:   triangleConf,
			Target:       price(lastLow * 0.95),
			Invalidation: price(lastHigh * 1.03),
		}, true
	case hs < -convergingSlope && ls > convergingSlope:
		return domain.PatternMatch{
			Type:       domain.PatternSymmetricTriangle,
			Confidence: symmetricConf,
		}, true
	}
	return domain.PatternMatch{}, false
}

// detectFlag finds a sharp pole followed by a tight consolidation.
// A consolidation with converging highs and lows is reported as a pennant.
func detectFlag(s series) (domain.PatternMatch, bool) {
	n := len(s.closes)
	if n < minFlagObservation {
		return domain.PatternMatch{}, false
	}
	poleStart := s.closes[n-minFlagObservation]
	poleEnd := s.closes[n-flagPoleBars]
	if poleStart == 0 {
		return domain.PatternMatch{}, false
	}
	pole := (poleEnd - poleStart) / poleStart
	if math.Abs(pole) <= flagMinPole {
		return domain.PatternMatch{}, false
	}

	consolidation := s.closes[n-flagPoleBars:]
	lo, hi := minOf(consolidation), maxOf(consolidation)
	mean := indicators.Mean(consolidation)
	if mean == 0 || (hi-lo)/mean >= flagMaxRange {
		return domain.PatternMatch{}, false
	}

	pennant := relativeSlope(s.highs[n-flagPoleBars:]) < -pennantSlope &&
		relativeSlope(s.lows[n-flagPoleBars:]) > pennantSlope
	last := s.closes[n-1]

	m := domain.PatternMatch{Confidence: flagConf}
	if pennant {
		m.Confidence = pennantConf
	}
	if pole > 0 {
		m.Type = domain.PatternBullFlag
		if pennant {
			m.Type = domain.PatternBullPennant
		}
		m.Target = price(last * (1 + pole))
		m.Invalidation = price(lo * 0.98)
	} else {
		m.Type = domain.PatternBearFlag
		if pennant {
			m.Type = domain.PatternBearPennant
		}
		m.Target = price(last * (1 + pole))
		m.Invalidation = price(hi * 1.02)
	}
	return m, true
}

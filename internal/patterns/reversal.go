package patterns

import (
	"math"
	"sort"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
)

const (
	shoulderPeakWindow    = 5
	shoulderTolerance     = 0.05
	doubleWindow          = 20
	doublePeakWindow      = 2
	doubleMinSeparation   = 3
	doubleTolerance       = 0.02
	doublePatternConf     = 0.75
	headShouldersBaseConf = 0.8
)

func detectHeadAndShoulders(s series) (domain.PatternMatch, bool) {
	peaks := localPeaks(s.highs, shoulderPeakWindow, indicators.StdDev(s.highs)*0.5)
	if len(peaks) < 3 {
		return domain.PatternMatch{}, false
	}
	ls, head, rs := peaks[len(peaks)-3], peaks[len(peaks)-2], peaks[len(peaks)-1]
	hl, hh, hr := s.highs[ls], s.highs[head], s.highs[rs]
	if hh <= hl || hh <= hr {
		return domain.PatternMatch{}, false
	}
	diff := math.Abs(hl-hr) / hh
	if diff >= shoulderTolerance {
		return domain.PatternMatch{}, false
	}

	neckline := minOf(s.lows[ls : rs+1])
	return domain.PatternMatch{
		Type:         domain.PatternHeadAndShoulders,
		Confidence:   headShouldersBaseConf - diff*2,
		Target:       price(neckline - (hh - neckline)),
		Invalidation: price(hh * 1.02),
	}, true
}

// detectDoubleTopBottom looks for two comparable extremes in the most recent bars.
// A double top takes precedence over a double bottom.
func detectDoubleTopBottom(s series) (domain.PatternMatch, bool) {
	if len(s.highs) < doubleWindow {
		return domain.PatternMatch{}, false
	}
	offset := len(s.highs) - doubleWindow
	highs := s.highs[offset:]
	lows := s.lows[offset:]

	if a, b, ok := twoExtremes(highs, localPeaks(highs, doublePeakWindow, 0), true); ok {
		top := math.Max(highs[a], highs[b])
		neckline := minOf(lows[a : b+1])
		return domain.PatternMatch{
			Type:         domain.PatternDoubleTop,
			Confidence:   doublePatternConf,
			Target:       price(neckline - (top - neckline)),
			Invalidation: price(top * 1.03),
		}, true
	}
	if a, b, ok := twoExtremes(lows, localTroughs(lows, doublePeakWindow, 0), false); ok {
		bottom := math.Min(lows[a], lows[b])
		neckline := maxOf(highs[a : b+1])
		return domain.PatternMatch{
			Type:         domain.PatternDoubleBottom,
			Confidence:   doublePatternConf,
			Target:       price(neckline + (neckline - bottom)),
			Invalidation: price(bottom * 0.97),
		}, true
	}
	return domain.PatternMatch{}, false
}

// twoExtremes picks the two most extreme candidates and checks they form a
// double formation. The returned indices are in chronological order.
func twoExtremes(xs []float64, candidates []int, highest bool) (int, int, bool) {
	if len(candidates) < 2 {
		return 0, 0, false
	}
	sorted := append([]int(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if highest {
			return xs[sorted[i]] > xs[sorted[j]]
		}
		return xs[sorted[i]] < xs[sorted[j]]
	})
	a, b := sorted[0], sorted[1]
	if a > b {
		a, b = b, a
	}
	if b-a < doubleMinSeparation {
		return 0, 0, false
	}
	ref := math.Max(math.Abs(xs[a]), math.Abs(xs[b]))
	if ref == 0 || math.Abs(xs[a]-xs[b])/ref >= doubleTolerance {
		return 0, 0, false
	}
	return a, b, true
}

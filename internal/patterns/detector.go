// Package patterns recognizes classic chart patterns in recent candles.
package patterns

import (
	"fmt"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
)

// DefaultLookback is the number of candles inspected by Detect.
const DefaultLookback = 50

// Detector runs every pattern detector over the most recent candles.
type Detector struct {
	lookback int
}

// NewDetector creates a detector; a non-positive lookback uses DefaultLookback.
func NewDetector(lookback int) *Detector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Detector{lookback: lookback}
}

// Detect returns all matches found in the last lookback candles.
// Fewer candles than the lookback yield no matches.
func (d *Detector) Detect(candles []domain.Candle) []domain.PatternMatch {
	if len(candles) < d.lookback {
		return nil
	}
	window := domain.Tail(candles, d.lookback)
	s := series{
		highs:  domain.Highs(window),
		lows:   domain.Lows(window),
		closes: domain.Closes(window),
	}
	timeframe := fmt.Sprintf("%d bars", len(window))

	var matches []domain.PatternMatch
	for _, detect := range []func(series) (domain.PatternMatch, bool){
		detectHeadAndShoulders,
		detectDoubleTopBottom,
		detectTriangle,
		detectFlag,
	} {
		if m, ok := detect(s); ok {
			m.Timeframe = timeframe
			matches = append(matches, m)
		}
	}
	return matches
}

// Best returns the highest-confidence match.
func Best(matches []domain.PatternMatch) (domain.PatternMatch, bool) {
	if len(matches) == 0 {
		return domain.PatternMatch{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, true
}

type series struct {
	highs  []float64
	lows   []float64
	closes []float64
}

func price(v float64) *float64 {
	return &v
}

// localPeaks returns indices that dominate a window of w bars on both sides
// and rise at least minProminence above the lower of the two window minima.
func localPeaks(xs []float64, w int, minProminence float64) []int {
	var peaks []int
	for i := w; i < len(xs)-w; i++ {
		isPeak := true
		for j := i - w; j <= i+w && isPeak; j++ {
			switch {
			case j < i && xs[j] >= xs[i]:
				isPeak = false
			case j > i && xs[j] > xs[i]:
				isPeak = false
			}
		}
		if !isPeak {
			continue
		}
		base := max(minOf(xs[i-w:i]), minOf(xs[i+1:i+w+1]))
		if xs[i]-base >= minProminence {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func localTroughs(xs []float64, w int, minProminence float64) []int {
	neg := make([]float64, len(xs))
	for i, x := range xs {
		neg[i] = -x
	}
	return localPeaks(neg, w, minProminence)
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// slope returns the least-squares slope of xs against the bar index.
func slope(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	meanX := (n - 1) / 2
	meanY := indicators.Mean(xs)
	var num, den float64
	for i, y := range xs {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	return num / den
}

// relativeSlope expresses slope as a fraction of the mean level per bar.
func relativeSlope(xs []float64) float64 {
	m := indicators.Mean(xs)
	if m == 0 {
		return 0
	}
	return slope(xs) / m
}

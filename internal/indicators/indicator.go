// Package indicators provides stateless technical indicators over price series.
package indicators

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientData is returned when a series is shorter than the indicator period.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidInput is returned for non-positive periods or mismatched series.
	ErrInvalidInput = errors.New("invalid indicator input")
)

func notEnough(name string, have, period int) error {
	return fmt.Errorf("not enough data (%d) to calculate %s for period %d: %w", have, name, period, ErrInsufficientData)
}

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s period must be positive, got %d: %w", name, period, ErrInvalidInput)
	}
	return nil
}

func checkSameLength(name string, series ...[]float64) error {
	for _, s := range series[1:] {
		if len(s) != len(series[0]) {
			return fmt.Errorf("%s inputs have mismatched lengths: %w", name, ErrInvalidInput)
		}
	}
	return nil
}

// Mean returns the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// Returns computes simple period-over-period returns.
func Returns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			continue
		}
		out = append(out, series[i]/series[i-1]-1)
	}
	return out
}

// LogReturns computes log returns, skipping non-positive prices.
func LogReturns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 || series[i] <= 0 {
			continue
		}
		out = append(out, math.Log(series[i]/series[i-1]))
	}
	return out
}

// MaxDrawdown returns the largest peak-to-trough decline of series as a fraction.
func MaxDrawdown(series []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
